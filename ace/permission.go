package ace

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Permission is one grantable capability from a fixed enumeration.
// Permissions are bit flags so that a full permission set fits in one byte.
// Bit order matches the alphabetical order of the names, which keeps the
// encoded form canonical across every backend.
type Permission uint8

const (
	// Discover allows finding the object in catalog listings.
	Discover Permission = 1 << iota

	// Link allows linking entities across objects.
	Link

	// Materialize allows materializing the object into external storage.
	Materialize

	// Owner allows managing the object and its permissions.
	Owner

	// Read allows reading the object's data.
	Read

	// Write allows writing the object's data.
	Write
)

// permissionNames maps each flag to its canonical name, in bit order.
var permissionNames = []struct {
	p    Permission
	name string
}{
	{Discover, "DISCOVER"},
	{Link, "LINK"},
	{Materialize, "MATERIALIZE"},
	{Owner, "OWNER"},
	{Read, "READ"},
	{Write, "WRITE"},
}

// String returns the canonical permission name, or "UNKNOWN".
func (p Permission) String() string {
	for _, e := range permissionNames {
		if e.p == p {
			return e.name
		}
	}
	return "UNKNOWN"
}

// ParsePermission resolves a canonical name to its flag.
func ParsePermission(s string) (Permission, error) {
	for _, e := range permissionNames {
		if e.name == s {
			return e.p, nil
		}
	}
	return 0, fmt.Errorf("ace: unknown permission %q", s)
}

// PermissionSet is an unordered, deduplicated set of permissions,
// represented as a bitmask.
type PermissionSet uint8

// Permissions builds a set from individual flags.
func Permissions(ps ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range ps {
		s |= PermissionSet(p)
	}
	return s
}

// AllPermissions is the full closed enumeration.
var AllPermissions = Permissions(Discover, Link, Materialize, Owner, Read, Write)

// Union returns the set union of s and o.
func (s PermissionSet) Union(o PermissionSet) PermissionSet { return s | o }

// Subtract returns the set difference s \ o.
func (s PermissionSet) Subtract(o PermissionSet) PermissionSet { return s &^ o }

// Contains reports whether p is in the set.
func (s PermissionSet) Contains(p Permission) bool { return s&PermissionSet(p) != 0 }

// ContainsAll reports whether every member of o is in s.
func (s PermissionSet) ContainsAll(o PermissionSet) bool { return s&o == o }

// IsEmpty reports whether the set has no members.
func (s PermissionSet) IsEmpty() bool { return s == 0 }

// Slice returns the members in canonical (alphabetical) order.
func (s PermissionSet) Slice() []Permission {
	var out []Permission
	for _, e := range permissionNames {
		if s.Contains(e.p) {
			out = append(out, e.p)
		}
	}
	return out
}

// Names returns the canonical names in alphabetical order. This is the wire
// and storage form of a permission set.
func (s PermissionSet) Names() []string {
	out := make([]string, 0, 6)
	for _, e := range permissionNames {
		if s.Contains(e.p) {
			out = append(out, e.name)
		}
	}
	return out
}

// ParsePermissionSet rebuilds a set from canonical names.
func ParsePermissionSet(names []string) (PermissionSet, error) {
	var s PermissionSet
	for _, n := range names {
		p, err := ParsePermission(n)
		if err != nil {
			return 0, err
		}
		s |= PermissionSet(p)
	}
	return s, nil
}

// String returns e.g. "{OWNER,READ,WRITE}".
func (s PermissionSet) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}

// MarshalJSON encodes the set as an array of names.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes an array of names.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParsePermissionSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
