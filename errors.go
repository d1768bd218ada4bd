package bastion

import (
	"errors"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/reservation"
)

var (
	// ErrForbidden is returned by the authorizing facade when the decision
	// engine denied a required check. The engine itself never errors for a
	// plain deny; it returns false.
	ErrForbidden = errors.New("bastion: forbidden")

	// ErrNameConflict is returned when a proposed name is already bound to
	// a different id.
	ErrNameConflict = reservation.ErrNameConflict

	// ErrIDConflict is returned when an id is already bound to a different
	// name.
	ErrIDConflict = reservation.ErrIDConflict

	// ErrNotFound is returned when operating on an AclKey or principal with
	// no entry.
	ErrNotFound = ace.ErrNotFound

	// ErrUnavailable is returned when a backing store or collaborator is
	// unreachable. Mutations propagate it; bulk list queries degrade to an
	// empty result instead, because authorization fails closed rather than
	// crashing the caller.
	ErrUnavailable = ace.ErrUnavailable
)
