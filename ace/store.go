package ace

import (
	"context"
	"errors"
	"time"

	"github.com/parallax-data/bastion/principal"
)

var (
	// ErrNotFound is returned when no Ace or object-type entry exists for
	// the requested key.
	ErrNotFound = errors.New("ace: not found")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("ace: store unavailable")
)

// Store is the permission-table contract implemented by every backend.
//
// Merge, Remove, and Overwrite are read-modify-writes confined to a single
// (AclKey, Principal) key: the backend guarantees at-most-one concurrent
// mutation is applied atomically per exact key, with no cross-key ordering.
// Multi-key effects (object-type back-fill, cascades) are repeated
// independent single-key operations; partial completion is tolerated and
// fixed by idempotent retry.
//
// Scans that feed authorization decisions (ListAclKeysByTypeAndExactPermissions,
// ListAuthorizedAclKeys) must exclude Aces whose expiration has lapsed.
type Store interface {
	// SetObjectType idempotently upserts the category tag for an AclKey and
	// back-fills it onto every existing Ace for that key, so the tag is
	// queryable from either side.
	SetObjectType(ctx context.Context, key AclKey, t ObjectType) error

	// GetObjectType returns the category tag for an AclKey.
	GetObjectType(ctx context.Context, key AclKey) (ObjectType, error)

	// MergePermissions atomically unions perms into the entry for k,
	// creating it if absent, and records the object type and expiration.
	MergePermissions(ctx context.Context, k Key, perms PermissionSet, t ObjectType, expiresAt time.Time) error

	// RemovePermissions atomically subtracts perms from the entry for k.
	// Removing from an absent entry is a no-op; removing every permission
	// leaves an empty-but-present entry.
	RemovePermissions(ctx context.Context, k Key, perms PermissionSet) error

	// OverwritePermissions unconditionally replaces the permission set and
	// expiration for k, preserving the recorded object type. Not a hot
	// path: it reads the current object type first.
	OverwritePermissions(ctx context.Context, k Key, perms PermissionSet, expiresAt time.Time) error

	// GetAce returns the entry for k, or ErrNotFound.
	GetAce(ctx context.Context, k Key) (*Ace, error)

	// GetAces is the bulk point read behind the authorization aggregator.
	// Absent keys are silently omitted from the result.
	GetAces(ctx context.Context, keys []Key) ([]Ace, error)

	// ListAcesByAclKey returns every entry for the object.
	ListAcesByAclKey(ctx context.Context, key AclKey) ([]Ace, error)

	// ListAcesByPrincipal returns every entry naming the principal.
	ListAcesByPrincipal(ctx context.Context, p principal.Principal) ([]Ace, error)

	// DeleteByAclKey removes every Ace for the object and its object-type
	// tag.
	DeleteByAclKey(ctx context.Context, key AclKey) error

	// DeleteByPrincipal removes every Ace naming the principal.
	DeleteByPrincipal(ctx context.Context, p principal.Principal) error

	// ListAclKeysByTypeAndExactPermissions returns every AclKey tagged with
	// objectType for which some unexpired Ace of a principal in ps carries
	// exactly perms (not a superset).
	ListAclKeysByTypeAndExactPermissions(ctx context.Context, ps principal.Set, objectType ObjectType, perms PermissionSet) ([]AclKey, error)

	// ListAuthorizedAclKeys returns AclKeys for which some unexpired Ace of
	// a principal in ps contains all of perms, paginated by an opaque
	// bookmark. An empty next bookmark means the scan is exhausted.
	// Concurrent deletes may cause a key to be skipped or repeated across
	// pages; callers treat results as best effort.
	ListAuthorizedAclKeys(ctx context.Context, ps principal.Set, perms PermissionSet, bookmark string, limit int) (keys []AclKey, next string, err error)
}
