// Package store defines the aggregate persistence interface. Each subsystem
// (ace, reservation, authlog) defines its own store interface; the composite
// Store composes them all. Backends: Postgres, MongoDB, and Memory.
package store

import (
	"context"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/authlog"
	"github.com/parallax-data/bastion/reservation"
)

// Store is the aggregate persistence interface. A single backend implements
// every subsystem store. The permission table and the reservation maps are
// the only shared mutable state in the system; all access goes through
// these operations.
type Store interface {
	ace.Store
	reservation.Store
	authlog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
