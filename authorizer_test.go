package bastion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/principal"
	"github.com/parallax-data/bastion/reservation"
	"github.com/parallax-data/bastion/store/memory"
)

// staticResolver is a fixed membership graph for tests.
type staticResolver map[principal.Principal][]principal.Principal

func (m staticResolver) PrincipalsOf(_ context.Context, p principal.Principal) ([]principal.Principal, error) {
	return m[p], nil
}

func newTestAuthorizer(t *testing.T, memberships staticResolver) (*Authorizer, *memory.Store) {
	t.Helper()
	if memberships == nil {
		memberships = staticResolver{}
	}
	s := memory.New()
	eng, err := NewEngine(WithStore(s))
	if err != nil {
		t.Fatal(err)
	}
	provider := principal.NewProvider(principal.ContextSession{}, memberships)
	auth, err := NewAuthorizer(eng, provider, nil)
	if err != nil {
		t.Fatal(err)
	}
	return auth, s
}

func callerCtx(userID string) context.Context {
	return principal.WithCaller(context.Background(), userID)
}

func TestCreateSecurableObject_SeedsOwner(t *testing.T) {
	auth, _ := newTestAuthorizer(t, nil)
	ctx := callerCtx("alice")

	key := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(ctx, key, "sales-data", ace.ObjectTypeEntitySet); err != nil {
		t.Fatal(err)
	}

	// The creator holds the full permission set.
	if err := auth.EnsureAccess(ctx, key, ace.AllPermissions); err != nil {
		t.Fatal(err)
	}
	// The name resolves to the object id.
	got, err := auth.LookupID(ctx, "sales-data")
	if err != nil {
		t.Fatal(err)
	}
	if got != key[0] {
		t.Fatalf("expected %s, got %s", key[0], got)
	}
}

func TestCreateSecurableObject_NameConflictRollsBack(t *testing.T) {
	auth, _ := newTestAuthorizer(t, nil)
	ctx := callerCtx("alice")

	first := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(ctx, first, "reports", ace.ObjectTypeEntitySet); err != nil {
		t.Fatal(err)
	}

	second := ace.MustAclKey(uuid.New())
	err := auth.CreateSecurableObject(ctx, second, "reports", ace.ObjectTypeEntitySet)
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}

	// The loser's id reservation must have been rolled back, so the same id
	// is free for a retry under a different name.
	if err := auth.CreateSecurableObject(ctx, second, "reports-v2", ace.ObjectTypeEntitySet); err != nil {
		t.Fatalf("expected retry under new name to succeed, got %v", err)
	}
}

func TestCreateSecurableObject_Unnamed(t *testing.T) {
	auth, _ := newTestAuthorizer(t, nil)
	ctx := callerCtx("alice")

	key := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(ctx, key, "", ace.ObjectTypeApp); err != nil {
		t.Fatal(err)
	}

	name, err := auth.LookupName(ctx, key[0])
	if err != nil {
		t.Fatal(err)
	}
	if !reservation.IsPlaceholder(name) {
		t.Fatalf("expected placeholder name, got %q", name)
	}
	// Placeholders are not resolvable by name.
	if _, err := auth.LookupID(ctx, name); !errors.Is(err, reservation.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for placeholder lookup, got %v", err)
	}
}

func TestEnsureAccess_Forbidden(t *testing.T) {
	auth, _ := newTestAuthorizer(t, nil)

	key := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(callerCtx("alice"), key, "private", ace.ObjectTypeEntitySet); err != nil {
		t.Fatal(err)
	}

	err := auth.EnsureAccess(callerCtx("bob"), key, ace.Permissions(ace.Read))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	auth, _ := newTestAuthorizer(t, nil)
	aliceCtx := callerCtx("alice")
	bobCtx := callerCtx("bob")
	bob := principal.Principal{Type: principal.TypeUser, ID: "bob"}

	key := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(aliceCtx, key, "shared", ace.ObjectTypeEntitySet); err != nil {
		t.Fatal(err)
	}

	// Non-owners cannot grant.
	err := auth.Grant(bobCtx, key, bob, ace.Permissions(ace.Read), time.Time{})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner grant, got %v", err)
	}

	if err := auth.Grant(aliceCtx, key, bob, ace.Permissions(ace.Read), time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := auth.EnsureAccess(bobCtx, key, ace.Permissions(ace.Read)); err != nil {
		t.Fatalf("expected bob to read after grant, got %v", err)
	}

	if err := auth.Revoke(aliceCtx, key, bob, ace.Permissions(ace.Read)); err != nil {
		t.Fatal(err)
	}
	if err := auth.EnsureAccess(bobCtx, key, ace.Permissions(ace.Read)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden after revoke, got %v", err)
	}
}

func TestGrant_ThroughRoleMembership(t *testing.T) {
	editors := principal.Principal{Type: principal.TypeRole, ID: "editors"}
	bob := principal.Principal{Type: principal.TypeUser, ID: "bob"}
	auth, _ := newTestAuthorizer(t, staticResolver{bob: {editors}})
	aliceCtx := callerCtx("alice")

	key := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(aliceCtx, key, "team-data", ace.ObjectTypeEntitySet); err != nil {
		t.Fatal(err)
	}
	if err := auth.Grant(aliceCtx, key, editors, ace.Permissions(ace.Write), time.Time{}); err != nil {
		t.Fatal(err)
	}

	// Bob holds Write via the editors role in his closure.
	if err := auth.EnsureAccess(callerCtx("bob"), key, ace.Permissions(ace.Write)); err != nil {
		t.Fatalf("expected write via role membership, got %v", err)
	}
}

func TestDeleteSecurableObject(t *testing.T) {
	auth, s := newTestAuthorizer(t, nil)
	ctx := callerCtx("alice")

	key := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(ctx, key, "doomed", ace.ObjectTypeEntitySet); err != nil {
		t.Fatal(err)
	}
	if err := auth.DeleteSecurableObject(ctx, key); err != nil {
		t.Fatal(err)
	}

	// Entries, tag, and reservation are all gone.
	aces, err := s.ListAcesByAclKey(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(aces) != 0 {
		t.Fatalf("expected no aces after delete, got %d", len(aces))
	}
	if _, err := s.GetObjectType(ctx, key); !errors.Is(err, ace.ErrNotFound) {
		t.Fatalf("expected object type gone, got %v", err)
	}
	if _, err := auth.LookupID(ctx, "doomed"); !errors.Is(err, reservation.ErrNotFound) {
		t.Fatalf("expected reservation released, got %v", err)
	}

	// The name is reusable immediately.
	if err := auth.CreateSecurableObject(ctx, ace.MustAclKey(uuid.New()), "doomed", ace.ObjectTypeEntitySet); err != nil {
		t.Fatalf("expected name reusable after delete, got %v", err)
	}
}

func TestRenameSecurableObject(t *testing.T) {
	auth, _ := newTestAuthorizer(t, nil)
	ctx := callerCtx("alice")

	key := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(ctx, key, "draft", ace.ObjectTypeEntitySet); err != nil {
		t.Fatal(err)
	}
	if err := auth.RenameSecurableObject(ctx, key, "final"); err != nil {
		t.Fatal(err)
	}

	got, err := auth.LookupID(ctx, "final")
	if err != nil {
		t.Fatal(err)
	}
	if got != key[0] {
		t.Fatalf("expected %s, got %s", key[0], got)
	}
	if _, err := auth.LookupID(ctx, "draft"); !errors.Is(err, reservation.ErrNotFound) {
		t.Fatalf("expected old name released, got %v", err)
	}
}

func TestDeletePrincipal(t *testing.T) {
	auth, s := newTestAuthorizer(t, nil)
	aliceCtx := callerCtx("alice")
	bob := principal.Principal{Type: principal.TypeUser, ID: "bob"}

	key := ace.MustAclKey(uuid.New())
	if err := auth.CreateSecurableObject(aliceCtx, key, "org-data", ace.ObjectTypeEntitySet); err != nil {
		t.Fatal(err)
	}
	if err := auth.Grant(aliceCtx, key, bob, ace.Permissions(ace.Read), time.Time{}); err != nil {
		t.Fatal(err)
	}

	if err := auth.DeletePrincipal(aliceCtx, bob); err != nil {
		t.Fatal(err)
	}
	aces, err := s.ListAcesByPrincipal(aliceCtx, bob)
	if err != nil {
		t.Fatal(err)
	}
	if len(aces) != 0 {
		t.Fatalf("expected no aces for deleted principal, got %d", len(aces))
	}
}

func TestEnsureAccess_NoCaller(t *testing.T) {
	auth, _ := newTestAuthorizer(t, nil)

	err := auth.EnsureAccess(context.Background(), ace.MustAclKey(uuid.New()), ace.Permissions(ace.Read))
	if !errors.Is(err, principal.ErrNoCaller) {
		t.Fatalf("expected ErrNoCaller, got %v", err)
	}
	if err != nil && strings.Contains(err.Error(), "forbidden") {
		t.Fatalf("missing caller must not read as a deny: %v", err)
	}
}
