package ace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyAclKey is returned when an AclKey has no elements.
var ErrEmptyAclKey = errors.New("ace: acl key must not be empty")

// AclKey is an ordered, non-empty sequence of internal object identifiers
// naming a securable object. A single element names a top-level object; a
// two-element key names a nested object, e.g. a property scoped to its
// parent entity set. Equality is structural.
type AclKey []uuid.UUID

// NewAclKey validates and builds an AclKey.
func NewAclKey(ids ...uuid.UUID) (AclKey, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyAclKey
	}
	k := make(AclKey, len(ids))
	copy(k, ids)
	return k, nil
}

// MustAclKey is like NewAclKey but panics on error. Use in tests and for
// keys built from already-validated ids.
func MustAclKey(ids ...uuid.UUID) AclKey {
	k, err := NewAclKey(ids...)
	if err != nil {
		panic(err)
	}
	return k
}

// Index returns the derived string form used for indexed lookups:
// canonical UUID strings joined by '/'.
func (k AclKey) Index() string {
	parts := make([]string, len(k))
	for i, id := range k {
		parts[i] = id.String()
	}
	return strings.Join(parts, "/")
}

// ParseAclKeyIndex rebuilds an AclKey from its Index form.
func ParseAclKeyIndex(s string) (AclKey, error) {
	if s == "" {
		return nil, fmt.Errorf("ace: parse acl key: empty index")
	}
	parts := strings.Split(s, "/")
	k := make(AclKey, len(parts))
	for i, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("ace: parse acl key %q: %w", s, err)
		}
		k[i] = id
	}
	return k, nil
}

// Equal reports structural equality.
func (k AclKey) Equal(o AclKey) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// Compare orders keys by their index form.
func (k AclKey) Compare(o AclKey) int {
	return strings.Compare(k.Index(), o.Index())
}

// Root returns the top-level object id.
func (k AclKey) Root() uuid.UUID { return k[0] }

// String returns the index form.
func (k AclKey) String() string { return k.Index() }

// Strings returns the canonical UUID strings of the key elements.
func (k AclKey) Strings() []string {
	out := make([]string, len(k))
	for i, id := range k {
		out[i] = id.String()
	}
	return out
}
