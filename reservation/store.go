package reservation

import (
	"context"

	"github.com/google/uuid"
)

// Store holds the two independently-partitioned maps of the bijection.
// Each primitive is atomic per key; nothing here spans two keys. The
// insert-if-absent primitives are the lock-free mutual exclusion the
// Service's protocol is built on.
type Store interface {
	// PutNameIfAbsent associates name → id only if name has no existing
	// binding. It returns the binding now in place and whether this call
	// inserted it.
	PutNameIfAbsent(ctx context.Context, name string, id uuid.UUID) (existing uuid.UUID, inserted bool, err error)

	// PutIDIfAbsent associates id → name only if id has no existing
	// binding. It returns the binding now in place and whether this call
	// inserted it.
	PutIDIfAbsent(ctx context.Context, id uuid.UUID, name string) (existing string, inserted bool, err error)

	// GetIDByName returns the id bound to name, or ErrNotFound.
	GetIDByName(ctx context.Context, name string) (uuid.UUID, error)

	// GetNameByID returns the name bound to id, or ErrNotFound.
	GetNameByID(ctx context.Context, id uuid.UUID) (string, error)

	// SetNameForID overwrites the id → name binding. Used only by the
	// rename protocol after the new name's table entry is secured.
	SetNameForID(ctx context.Context, id uuid.UUID, name string) error

	// DeleteName removes the name → id binding. Idempotent.
	DeleteName(ctx context.Context, name string) error

	// DeleteID removes the id → name binding. Idempotent.
	DeleteID(ctx context.Context, id uuid.UUID) error
}
