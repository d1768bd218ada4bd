// Package reservation maintains the bijective name ⇄ internal-id mapping for
// every securable object in the system. All object creation and rename paths
// pass through here before any permission entry can reference the object.
//
// Correctness under concurrent writers rests entirely on the store's atomic
// insert-if-absent primitive plus rollback-on-conflict; no distributed lock
// is used.
package reservation

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNameConflict is returned when a proposed name is already bound to a
	// different id. Never silently retried: it is a genuine naming
	// collision surfaced to the caller.
	ErrNameConflict = errors.New("reservation: name already bound to a different id")

	// ErrIDConflict is returned when an id is already bound to a different
	// name.
	ErrIDConflict = errors.New("reservation: id already bound to a different name")

	// ErrNotFound is returned when no reservation exists for the given name
	// or id.
	ErrNotFound = errors.New("reservation: not found")

	// ErrReservedName is returned when a proposed name falls inside the
	// placeholder namespace.
	ErrReservedName = errors.New("reservation: name is in the reserved namespace")
)

// Reservation is one side of the bijection as returned by reads.
type Reservation struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

// placeholderPrefix is the private namespace for object categories that have
// no human-readable name. Placeholder names never enter the name→id table,
// so the name table stays a strict bijection over human-assigned names while
// every id still appears in the id→name table.
const placeholderPrefix = "_reserved/"

// PlaceholderName returns the fixed placeholder name for an unnamed object
// category.
func PlaceholderName(category string) string {
	return placeholderPrefix + category
}

// IsPlaceholder reports whether name lies in the reserved namespace.
func IsPlaceholder(name string) bool {
	return strings.HasPrefix(name, placeholderPrefix)
}
