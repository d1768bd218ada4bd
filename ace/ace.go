// Package ace defines the access-control entry entities and the permission
// store contract. An Ace is the explicit pairing of a principal with a
// permission set on a securable object; absence of an Ace means deny. No
// permission is ever inherited.
package ace

import (
	"time"

	"github.com/parallax-data/bastion/principal"
)

// ObjectType classifies what an AclKey refers to. Every AclKey with at least
// one Ace has exactly one ObjectType entry, recorded before or atomically
// with its first Ace.
type ObjectType string

const (
	ObjectTypeUnknown                 ObjectType = ""
	ObjectTypeEntitySet               ObjectType = "EntitySet"
	ObjectTypePropertyTypeInEntitySet ObjectType = "PropertyTypeInEntitySet"
	ObjectTypeOrganization            ObjectType = "Organization"
	ObjectTypeRole                    ObjectType = "Role"
	ObjectTypeApp                     ObjectType = "App"
)

// Key identifies one access-control entry: one securable object, one
// principal. All single-key mutations are confined to exactly one Key.
type Key struct {
	AclKey    AclKey              `json:"acl_key"`
	Principal principal.Principal `json:"principal"`
}

// String returns the canonical "aclKeyIndex#TYPE|id" row key.
func (k Key) String() string {
	return k.AclKey.Index() + "#" + k.Principal.String()
}

// Value is the stored half of an Ace. Permissions may be empty while the
// entry is present, meaning the object type is recorded but nothing is
// granted. A zero ExpiresAt means the grant does not expire; otherwise the
// expiration bounds the validity of the entire permission set.
type Value struct {
	Permissions PermissionSet `json:"permissions"`
	ObjectType  ObjectType    `json:"object_type,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at,omitzero"`
}

// Expired reports whether the value's grant has lapsed at the given instant.
func (v Value) Expired(now time.Time) bool {
	return !v.ExpiresAt.IsZero() && !now.Before(v.ExpiresAt)
}

// Ace is a full access-control entry as returned by reads.
type Ace struct {
	Key   Key   `json:"key"`
	Value Value `json:"value"`
}

// Expired reports whether the entry's grant has lapsed at the given instant.
// The decision engine treats an expired Ace exactly like an absent one.
func (a Ace) Expired(now time.Time) bool { return a.Value.Expired(now) }
