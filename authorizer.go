package bastion

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/principal"
	"github.com/parallax-data/bastion/reservation"
	"github.com/parallax-data/bastion/store"
)

// Authorizer is the high-level facade over the decision engine, the principal
// context provider, and the identity reservation service. It resolves the
// calling user's principal closure, enforces ownership on mutations, keeps
// object creation ordered (identity reserved before any permission is
// attached), and fires event hooks after successful writes.
type Authorizer struct {
	engine       *Engine
	provider     *principal.Provider
	reservations *reservation.Service
	logger       *slog.Logger
}

// NewAuthorizer creates the facade. The reservation service may be nil, in
// which case one is built over the engine's own store.
func NewAuthorizer(engine *Engine, provider *principal.Provider, reservations *reservation.Service) (*Authorizer, error) {
	if engine == nil {
		return nil, errors.New("bastion: engine is required")
	}
	if provider == nil {
		return nil, errors.New("bastion: principal provider is required")
	}
	if reservations == nil {
		reservations = reservation.NewService(engine.Store(), reservation.WithLogger(engine.logger))
	}
	return &Authorizer{
		engine:       engine,
		provider:     provider,
		reservations: reservations,
		logger:       engine.logger,
	}, nil
}

// Engine returns the underlying decision engine.
func (a *Authorizer) Engine() *Engine { return a.engine }

// Reservations returns the identity reservation service.
func (a *Authorizer) Reservations() *reservation.Service { return a.reservations }

func (a *Authorizer) store() store.Store { return a.engine.Store() }

// ---------------------------------------------------------------------------
// Decision surface
// ---------------------------------------------------------------------------

// EnsureAccess asserts that the caller holds every permission in required on
// key, returning ErrForbidden on a deny. Denies carry no detail about which
// permission was missing.
func (a *Authorizer) EnsureAccess(ctx context.Context, key ace.AclKey, required ace.PermissionSet) error {
	ps, err := a.provider.CurrentPrincipals(ctx)
	if err != nil {
		return err
	}
	ok, err := a.engine.CheckPermissions(ctx, key, ps, required)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s requires %s", ErrForbidden, key.Index(), required)
	}
	return nil
}

// EnsureOwner asserts that the caller owns key.
func (a *Authorizer) EnsureOwner(ctx context.Context, key ace.AclKey) error {
	return a.EnsureAccess(ctx, key, ace.Permissions(ace.Owner))
}

// Authorize evaluates a batch of access checks against the caller's
// principals.
func (a *Authorizer) Authorize(ctx context.Context, checks []AccessCheck) ([]Authorization, error) {
	ps, err := a.provider.CurrentPrincipals(ctx)
	if err != nil {
		return nil, err
	}
	return a.engine.Authorize(ctx, checks, ps)
}

// AccessChecks streams authorization results for the caller over an
// unbounded check sequence.
func (a *Authorizer) AccessChecks(ctx context.Context, checks iter.Seq[AccessCheck]) iter.Seq2[Authorization, error] {
	ps, err := a.provider.CurrentPrincipals(ctx)
	if err != nil {
		return func(yield func(Authorization, error) bool) {
			yield(Authorization{}, err)
		}
	}
	return a.engine.AccessChecksForPrincipals(ctx, checks, ps)
}

// AuthorizedObjectsOfType streams the AclKeys of objects of the given type
// on which the caller holds exactly perms.
func (a *Authorizer) AuthorizedObjectsOfType(ctx context.Context, t ace.ObjectType, perms ace.PermissionSet) iter.Seq2[ace.AclKey, error] {
	ps, err := a.provider.CurrentPrincipals(ctx)
	if err != nil {
		return func(yield func(ace.AclKey, error) bool) {
			yield(nil, err)
		}
	}
	return a.engine.AuthorizedObjectsOfType(ctx, ps, t, perms)
}

// AuthorizedObjects returns one page of every object on which the caller
// holds at least perms.
func (a *Authorizer) AuthorizedObjects(ctx context.Context, perms ace.PermissionSet, bookmark string, limit int) (AuthorizedObjectsPage, error) {
	ps, err := a.provider.CurrentPrincipals(ctx)
	if err != nil {
		return AuthorizedObjectsPage{}, err
	}
	return a.engine.AuthorizedObjects(ctx, ps, perms, bookmark, limit)
}

// ---------------------------------------------------------------------------
// Mutation surface
// ---------------------------------------------------------------------------

// Grant unions perms into the entry for (key, to). The caller must own key.
// A zero expiresAt grants without expiration.
func (a *Authorizer) Grant(ctx context.Context, key ace.AclKey, to principal.Principal, perms ace.PermissionSet, expiresAt time.Time) error {
	if err := a.EnsureOwner(ctx, key); err != nil {
		return err
	}
	k := ace.Key{AclKey: key, Principal: to}
	if err := a.store().MergePermissions(ctx, k, perms, ace.ObjectTypeUnknown, expiresAt); err != nil {
		return fmt.Errorf("bastion: grant on %s: %w", key.Index(), err)
	}
	a.engine.Hooks().EmitPermissionsUpdated(ctx, k)
	return nil
}

// Revoke subtracts perms from the entry for (key, to). The caller must own
// key. Revoking from an absent entry is a no-op.
func (a *Authorizer) Revoke(ctx context.Context, key ace.AclKey, from principal.Principal, perms ace.PermissionSet) error {
	if err := a.EnsureOwner(ctx, key); err != nil {
		return err
	}
	k := ace.Key{AclKey: key, Principal: from}
	if err := a.store().RemovePermissions(ctx, k, perms); err != nil {
		return fmt.Errorf("bastion: revoke on %s: %w", key.Index(), err)
	}
	a.engine.Hooks().EmitPermissionsUpdated(ctx, k)
	return nil
}

// SetPermissions replaces the entry for (key, to) outright. The caller must
// own key.
func (a *Authorizer) SetPermissions(ctx context.Context, key ace.AclKey, to principal.Principal, perms ace.PermissionSet, expiresAt time.Time) error {
	if err := a.EnsureOwner(ctx, key); err != nil {
		return err
	}
	k := ace.Key{AclKey: key, Principal: to}
	if err := a.store().OverwritePermissions(ctx, k, perms, expiresAt); err != nil {
		return fmt.Errorf("bastion: set permissions on %s: %w", key.Index(), err)
	}
	a.engine.Hooks().EmitPermissionsUpdated(ctx, k)
	return nil
}

// SetObjectType retags key and back-fills the tag onto its existing entries.
// The caller must own key.
func (a *Authorizer) SetObjectType(ctx context.Context, key ace.AclKey, t ace.ObjectType) error {
	if err := a.EnsureOwner(ctx, key); err != nil {
		return err
	}
	if err := a.store().SetObjectType(ctx, key, t); err != nil {
		return fmt.Errorf("bastion: set object type on %s: %w", key.Index(), err)
	}
	a.engine.Hooks().EmitObjectTypeChanged(ctx, key, t)
	return nil
}

// ---------------------------------------------------------------------------
// Object lifecycle
// ---------------------------------------------------------------------------

// CreateSecurableObject brings a new object under authorization control:
// its id (the last element of key) is reserved first, then the caller is
// seeded as owner with the full permission set. Nothing can be granted on an
// object whose identity was never reserved.
//
// An empty name reserves the id against the object type's placeholder
// category instead of a human-assigned name.
func (a *Authorizer) CreateSecurableObject(ctx context.Context, key ace.AclKey, name string, t ace.ObjectType) error {
	if len(key) == 0 {
		return fmt.Errorf("bastion: create: %w", ace.ErrEmptyAclKey)
	}
	owner, err := a.provider.CurrentUser(ctx)
	if err != nil {
		return err
	}
	objectID := key[len(key)-1]

	if name == "" {
		err = a.reservations.ReserveID(ctx, objectID, string(t))
	} else {
		err = a.reservations.ReserveIDAndValidateType(ctx, objectID, name)
	}
	if err != nil {
		return fmt.Errorf("bastion: create %s: %w", key.Index(), err)
	}

	k := ace.Key{AclKey: key, Principal: owner}
	if err := a.store().MergePermissions(ctx, k, ace.AllPermissions, t, time.Time{}); err != nil {
		// Release the reservation so a retry is not blocked on IDConflict.
		if rbErr := a.reservations.Release(ctx, objectID); rbErr != nil {
			a.logger.Warn("reservation release after failed seed",
				slog.String("acl_key", key.Index()),
				slog.String("error", rbErr.Error()),
			)
		}
		return fmt.Errorf("bastion: create %s: seed owner: %w", key.Index(), err)
	}
	a.engine.Hooks().EmitObjectTypeChanged(ctx, key, t)
	a.engine.Hooks().EmitPermissionsUpdated(ctx, k)
	return nil
}

// DeleteSecurableObject removes every entry for key, its object-type tag,
// and its identity reservation. The caller must own key.
func (a *Authorizer) DeleteSecurableObject(ctx context.Context, key ace.AclKey) error {
	if err := a.EnsureOwner(ctx, key); err != nil {
		return err
	}
	if err := a.store().DeleteByAclKey(ctx, key); err != nil {
		return fmt.Errorf("bastion: delete %s: %w", key.Index(), err)
	}
	if err := a.reservations.Release(ctx, key[len(key)-1]); err != nil {
		return fmt.Errorf("bastion: delete %s: %w", key.Index(), err)
	}
	a.engine.Hooks().EmitObjectDeleted(ctx, key)
	return nil
}

// RenameSecurableObject rebinds the object's id to newName in the
// reservation tables. The caller must own key.
func (a *Authorizer) RenameSecurableObject(ctx context.Context, key ace.AclKey, newName string) error {
	if err := a.EnsureOwner(ctx, key); err != nil {
		return err
	}
	if err := a.reservations.RenameReservation(ctx, key[len(key)-1], newName); err != nil {
		return fmt.Errorf("bastion: rename %s: %w", key.Index(), err)
	}
	return nil
}

// DeletePrincipal removes every entry naming p across all objects, used when
// a user, role, or organization is deleted from the platform. This is an
// administrative operation; callers gate it themselves.
func (a *Authorizer) DeletePrincipal(ctx context.Context, p principal.Principal) error {
	if err := a.store().DeleteByPrincipal(ctx, p); err != nil {
		return fmt.Errorf("bastion: delete principal %s: %w", p, err)
	}
	a.provider.Invalidate(p)
	return nil
}

// LookupID resolves a human-assigned object name to its id.
func (a *Authorizer) LookupID(ctx context.Context, name string) (uuid.UUID, error) {
	return a.reservations.GetID(ctx, name)
}

// LookupName resolves an object id to its bound name.
func (a *Authorizer) LookupName(ctx context.Context, objectID uuid.UUID) (string, error) {
	return a.reservations.GetName(ctx, objectID)
}
