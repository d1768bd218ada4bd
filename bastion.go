// Package bastion is the authorization core of a multi-tenant data platform.
// It decides, for any (securable-object, principal-set, requested-permissions)
// triple, whether access is granted, and guarantees that every securable
// object has a globally unique identity before any permission can be attached
// to it.
//
// Permissions are always explicit per object/principal pair: there is no
// inheritance and no role hierarchy. Absence of an entry means deny.
//
//	eng, err := bastion.NewEngine(
//	    bastion.WithStore(memory.New()),
//	)
//	ok, err := eng.CheckPermissions(ctx, key, principals,
//	    ace.Permissions(ace.Read))
package bastion

import (
	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/principal"
)

// Aliases for the core value types, so that callers composing the engine and
// facade can work from the root package alone.
type (
	// Principal is a user, role, or organization identity.
	Principal = principal.Principal

	// PrincipalSet is a sorted, deduplicated collection of principals.
	PrincipalSet = principal.Set

	// AclKey is the ordered identifier sequence naming a securable object.
	AclKey = ace.AclKey

	// Permission is one grantable capability from the fixed enumeration.
	Permission = ace.Permission

	// PermissionSet is an unordered, deduplicated permission collection.
	PermissionSet = ace.PermissionSet

	// SecurableObjectType is the category tag of an AclKey.
	SecurableObjectType = ace.ObjectType
)

// AccessCheck is one query unit: a securable object plus the permissions to
// test on it.
type AccessCheck struct {
	AclKey      AclKey        `json:"acl_key"`
	Permissions PermissionSet `json:"permissions"`
}

// Authorization is the per-object outcome of an access-check query: for each
// requested permission, whether some principal in the queried set holds it.
type Authorization struct {
	AclKey  AclKey              `json:"acl_key"`
	Granted map[Permission]bool `json:"granted"`
}

// All reports whether every requested permission was granted.
func (a Authorization) All() bool {
	for _, ok := range a.Granted {
		if !ok {
			return false
		}
	}
	return len(a.Granted) > 0
}

// AuthorizedObjectsPage is one page of the unbounded "list objects" query.
// Bookmark is an opaque continuation token; empty means the scan is
// exhausted. Deleting entries concurrently with pagination may cause an
// object to be skipped or, rarely, repeated; that is a consistency caveat
// of the scan, not an error.
type AuthorizedObjectsPage struct {
	Keys     []AclKey `json:"keys"`
	Bookmark string   `json:"bookmark,omitempty"`
}
