// Package hook defines the fire-and-forget notification boundary. Other
// subsystems (search indexing, schema cache invalidation) register listeners
// for object-category changes and deletions; the core emits events without
// blocking on or retrying their delivery.
package hook

import (
	"context"

	"github.com/parallax-data/bastion/ace"
)

// Listener is the base interface all listeners implement. A listener opts
// into individual events by additionally implementing the interfaces below.
type Listener interface {
	// Name identifies the listener in logs.
	Name() string
}

// ObjectTypeChanged is notified after the category tag of an AclKey is set
// or changed.
type ObjectTypeChanged interface {
	OnObjectTypeChanged(ctx context.Context, key ace.AclKey, t ace.ObjectType) error
}

// ObjectDeleted is notified after a securable object and all its entries
// are deleted.
type ObjectDeleted interface {
	OnObjectDeleted(ctx context.Context, key ace.AclKey) error
}

// PermissionsUpdated is notified after a grant, revoke, or overwrite on a
// single access-control entry.
type PermissionsUpdated interface {
	OnPermissionsUpdated(ctx context.Context, k ace.Key) error
}
