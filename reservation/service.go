package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service allocates and protects the name ⇄ id bijection across the cluster.
//
// The two-step reserve is the one place in the system where ordering
// matters: the id→name write must complete before the name→id write is
// attempted, and the rollback on a name conflict re-targets exactly the
// entry written in step one. A caller racing in the window between the two
// steps either loses the name-table race and observes ErrNameConflict, or
// observes ErrIDConflict and gives up.
type Service struct {
	store  Store
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a reservation service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReserveIDAndValidateType binds id ⇄ name, failing on any conflict with
// the existing bijection. Reserving an identical pair again is idempotently
// accepted.
func (s *Service) ReserveIDAndValidateType(ctx context.Context, id uuid.UUID, name string) error {
	if IsPlaceholder(name) {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}

	existingName, inserted, err := s.store.PutIDIfAbsent(ctx, id, name)
	if err != nil {
		return fmt.Errorf("reservation: reserve id %s: %w", id, err)
	}
	if !inserted {
		if existingName == name {
			// Reservation already exists; idempotent accept.
			return nil
		}
		return fmt.Errorf("%w: id %s is bound to %q, proposed %q", ErrIDConflict, id, existingName, name)
	}

	existingID, inserted, err := s.store.PutNameIfAbsent(ctx, name, id)
	if err != nil {
		return fmt.Errorf("reservation: reserve name %q: %w", name, err)
	}
	if inserted || existingID == id {
		return nil
	}

	// The name lost to a different id: roll back the id→name entry written
	// above so no dangling half-reservation survives.
	if rbErr := s.store.DeleteID(ctx, id); rbErr != nil {
		s.logger.Warn("reservation rollback failed",
			slog.String("id", id.String()),
			slog.String("name", name),
			slog.String("error", rbErr.Error()),
		)
	}
	return fmt.Errorf("%w: %q is bound to id %s", ErrNameConflict, name, existingID)
}

// ReserveID reserves an id for an unnamed object category against the
// category's fixed placeholder name, so every object participates in the
// id table uniformly. Placeholder names never enter the name table.
func (s *Service) ReserveID(ctx context.Context, id uuid.UUID, category string) error {
	placeholder := PlaceholderName(category)
	existing, inserted, err := s.store.PutIDIfAbsent(ctx, id, placeholder)
	if err != nil {
		return fmt.Errorf("reservation: reserve id %s: %w", id, err)
	}
	if !inserted && existing != placeholder {
		return fmt.Errorf("%w: id %s is bound to %q", ErrIDConflict, id, existing)
	}
	return nil
}

// RenameReservation rebinds id to newName. The new name's table entry is
// secured first, then the old name is deleted, then the id's name updated,
// in that order, so a crash between steps leaves at worst a dangling old
// name but never two valid names for one id nor two ids for one name.
func (s *Service) RenameReservation(ctx context.Context, id uuid.UUID, newName string) error {
	if IsPlaceholder(newName) {
		return fmt.Errorf("%w: %q", ErrReservedName, newName)
	}

	oldName, err := s.store.GetNameByID(ctx, id)
	if err != nil {
		return fmt.Errorf("reservation: rename id %s: %w", id, err)
	}
	if oldName == newName {
		return nil
	}

	existingID, inserted, err := s.store.PutNameIfAbsent(ctx, newName, id)
	if err != nil {
		return fmt.Errorf("reservation: rename to %q: %w", newName, err)
	}
	if !inserted && existingID != id {
		return fmt.Errorf("%w: %q is bound to id %s", ErrNameConflict, newName, existingID)
	}

	if !IsPlaceholder(oldName) {
		if err := s.store.DeleteName(ctx, oldName); err != nil {
			return fmt.Errorf("reservation: rename %s: delete old name %q: %w", id, oldName, err)
		}
	}
	if err := s.store.SetNameForID(ctx, id, newName); err != nil {
		return fmt.Errorf("reservation: rename %s: update id binding: %w", id, err)
	}
	return nil
}

// Release frees both sides of the bijection for id. Always attempts the
// delete even when no entry is found, so retries are idempotent.
func (s *Service) Release(ctx context.Context, id uuid.UUID) error {
	name, err := s.store.GetNameByID(ctx, id)
	notFound := err != nil
	if notFound && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("reservation: release id %s: %w", id, err)
	}

	if err := s.store.DeleteID(ctx, id); err != nil {
		return fmt.Errorf("reservation: release id %s: %w", id, err)
	}
	if !notFound && !IsPlaceholder(name) {
		if err := s.store.DeleteName(ctx, name); err != nil {
			return fmt.Errorf("reservation: release name %q: %w", name, err)
		}
	}
	return nil
}

// GetID resolves a human-assigned name to its id.
func (s *Service) GetID(ctx context.Context, name string) (uuid.UUID, error) {
	if IsPlaceholder(name) {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s.store.GetIDByName(ctx, name)
}

// GetName resolves an id to its bound name, which may be a placeholder.
func (s *Service) GetName(ctx context.Context, id uuid.UUID) (string, error) {
	return s.store.GetNameByID(ctx, id)
}
