// Package principal defines the Principal identity type and the context
// provider that resolves the caller of a request to its full principal set.
package principal

import (
	"fmt"
	"slices"
	"strings"
)

// Type identifies the kind of actor a principal represents.
type Type string

const (
	// TypeUser represents a human user.
	TypeUser Type = "USER"

	// TypeRole represents a named role principal.
	TypeRole Type = "ROLE"

	// TypeOrganization represents an organization principal.
	TypeOrganization Type = "ORGANIZATION"
)

// Valid reports whether t is one of the closed set of principal types.
func (t Type) Valid() bool {
	switch t {
	case TypeUser, TypeRole, TypeOrganization:
		return true
	}
	return false
}

// Principal is an immutable (type, id) identity. Principals are totally
// ordered so that principal collections are deterministic.
type Principal struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

// String returns the canonical "TYPE|id" form.
func (p Principal) String() string {
	return string(p.Type) + "|" + p.ID
}

// Compare orders principals by type, then by id.
func (p Principal) Compare(o Principal) int {
	if c := strings.Compare(string(p.Type), string(o.Type)); c != 0 {
		return c
	}
	return strings.Compare(p.ID, o.ID)
}

// Parse parses the canonical "TYPE|id" form produced by String.
func Parse(s string) (Principal, error) {
	t, rid, ok := strings.Cut(s, "|")
	if !ok {
		return Principal{}, fmt.Errorf("principal: parse %q: missing separator", s)
	}
	p := Principal{Type: Type(t), ID: rid}
	if !p.Type.Valid() {
		return Principal{}, fmt.Errorf("principal: parse %q: unknown type %q", s, t)
	}
	if p.ID == "" {
		return Principal{}, fmt.Errorf("principal: parse %q: empty id", s)
	}
	return p, nil
}

// Set is a sorted, deduplicated collection of principals.
type Set []Principal

// NewSet builds a sorted, deduplicated set from the given principals.
func NewSet(ps ...Principal) Set {
	s := slices.Clone(ps)
	slices.SortFunc(s, Principal.Compare)
	return slices.CompactFunc(s, func(a, b Principal) bool { return a == b })
}

// Contains reports whether p is a member of the set.
func (s Set) Contains(p Principal) bool {
	_, ok := slices.BinarySearchFunc(s, p, Principal.Compare)
	return ok
}

// With returns a new set containing the members of s plus ps.
func (s Set) With(ps ...Principal) Set {
	return NewSet(append(slices.Clone(s), ps...)...)
}

// Strings returns the canonical string form of every member, in order.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.String()
	}
	return out
}
