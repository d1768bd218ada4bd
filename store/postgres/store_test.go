package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/authlog"
	"github.com/parallax-data/bastion/id"
	"github.com/parallax-data/bastion/principal"
	"github.com/parallax-data/bastion/reservation"
)

// newTestStore spins up a disposable Postgres container. Tests are skipped
// when no container runtime is available.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("bastion"),
		tcpostgres.WithUsername("bastion"),
		tcpostgres.WithPassword("bastion"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		t.Skipf("container runtime unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(ctr)
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPostgresStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u1 := principal.Principal{Type: principal.TypeUser, ID: "u1"}
	ps := principal.NewSet(u1)

	t.Run("merge unions and stays canonical", func(t *testing.T) {
		k := ace.Key{AclKey: ace.MustAclKey(uuid.New()), Principal: u1}
		if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Write), ace.ObjectTypeEntitySet, time.Time{}); err != nil {
			t.Fatal(err)
		}
		if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Read, ace.Write), ace.ObjectTypeUnknown, time.Time{}); err != nil {
			t.Fatal(err)
		}

		a, err := s.GetAce(ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		if a.Value.Permissions != ace.Permissions(ace.Read, ace.Write) {
			t.Fatalf("got %s", a.Value.Permissions)
		}
		if a.Value.ObjectType != ace.ObjectTypeEntitySet {
			t.Fatalf("merge with unknown type overwrote tag: %q", a.Value.ObjectType)
		}
		if got, err := s.GetObjectType(ctx, k.AclKey); err != nil || got != ace.ObjectTypeEntitySet {
			t.Fatalf("tag table not seeded with the ace: %q, %v", got, err)
		}

		// The canonical array makes the exact-match query work.
		keys, err := s.ListAclKeysByTypeAndExactPermissions(ctx, ps, ace.ObjectTypeEntitySet, ace.Permissions(ace.Read, ace.Write))
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 1 || !keys[0].Equal(k.AclKey) {
			t.Fatalf("exact match failed: %v", keys)
		}
	})

	t.Run("remove subtracts", func(t *testing.T) {
		k := ace.Key{AclKey: ace.MustAclKey(uuid.New()), Principal: u1}
		if err := s.MergePermissions(ctx, k, ace.AllPermissions, ace.ObjectTypeUnknown, time.Time{}); err != nil {
			t.Fatal(err)
		}
		if err := s.RemovePermissions(ctx, k, ace.Permissions(ace.Owner, ace.Write)); err != nil {
			t.Fatal(err)
		}
		a, err := s.GetAce(ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		want := ace.AllPermissions.Subtract(ace.Permissions(ace.Owner, ace.Write))
		if a.Value.Permissions != want {
			t.Fatalf("got %s, want %s", a.Value.Permissions, want)
		}
	})

	t.Run("expired entries excluded from scans", func(t *testing.T) {
		k := ace.Key{AclKey: ace.MustAclKey(uuid.New()), Principal: u1}
		if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Materialize), ace.ObjectTypeUnknown, time.Now().Add(-time.Minute)); err != nil {
			t.Fatal(err)
		}
		keys, _, err := s.ListAuthorizedAclKeys(ctx, ps, ace.Permissions(ace.Materialize), "", 10)
		if err != nil {
			t.Fatal(err)
		}
		for _, key := range keys {
			if key.Equal(k.AclKey) {
				t.Fatal("expired entry surfaced")
			}
		}
	})

	t.Run("paginated scan covers all keys once", func(t *testing.T) {
		// Each key is granted to two principals, so every key owns an
		// adjacent pair of rows and pages can fill mid-pair.
		r1 := principal.Principal{Type: principal.TypeRole, ID: "r1"}
		both := principal.NewSet(u1, r1)
		want := make(map[string]bool)
		for i := 0; i < 12; i++ {
			key := ace.MustAclKey(uuid.New())
			for _, p := range []principal.Principal{u1, r1} {
				k := ace.Key{AclKey: key, Principal: p}
				if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Link), ace.ObjectTypeUnknown, time.Time{}); err != nil {
					t.Fatal(err)
				}
			}
			want[key.Index()] = true
		}

		got := make(map[string]bool)
		bookmark := ""
		for {
			keys, next, err := s.ListAuthorizedAclKeys(ctx, both, ace.Permissions(ace.Link), bookmark, 5)
			if err != nil {
				t.Fatal(err)
			}
			for _, key := range keys {
				if got[key.Index()] {
					t.Fatalf("key %s repeated", key.Index())
				}
				got[key.Index()] = true
			}
			if next == "" {
				break
			}
			bookmark = next
		}
		if len(got) != len(want) {
			t.Fatalf("got %d keys, want %d", len(got), len(want))
		}
	})

	t.Run("object type back-fill and cascade", func(t *testing.T) {
		key := ace.MustAclKey(uuid.New())
		k := ace.Key{AclKey: key, Principal: u1}
		if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Read), ace.ObjectTypeUnknown, time.Time{}); err != nil {
			t.Fatal(err)
		}
		if err := s.SetObjectType(ctx, key, ace.ObjectTypeOrganization); err != nil {
			t.Fatal(err)
		}
		a, err := s.GetAce(ctx, k)
		if err != nil {
			t.Fatal(err)
		}
		if a.Value.ObjectType != ace.ObjectTypeOrganization {
			t.Fatalf("back-fill missed: %q", a.Value.ObjectType)
		}

		if err := s.DeleteByAclKey(ctx, key); err != nil {
			t.Fatal(err)
		}
		if _, err := s.GetAce(ctx, k); !errors.Is(err, ace.ErrNotFound) {
			t.Fatalf("ace survived: %v", err)
		}
		if _, err := s.GetObjectType(ctx, key); !errors.Is(err, ace.ErrNotFound) {
			t.Fatalf("tag survived: %v", err)
		}
	})

	t.Run("reservation insert-if-absent", func(t *testing.T) {
		resID := uuid.New()
		existing, inserted, err := s.PutNameIfAbsent(ctx, "pg-name", resID)
		if err != nil {
			t.Fatal(err)
		}
		if !inserted || existing != resID {
			t.Fatalf("first put: inserted=%v existing=%s", inserted, existing)
		}
		other := uuid.New()
		existing, inserted, err = s.PutNameIfAbsent(ctx, "pg-name", other)
		if err != nil {
			t.Fatal(err)
		}
		if inserted || existing != resID {
			t.Fatalf("second put: inserted=%v existing=%s", inserted, existing)
		}

		if _, err := s.GetIDByName(ctx, "nope"); !errors.Is(err, reservation.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := s.DeleteName(ctx, "pg-name"); err != nil {
			t.Fatal(err)
		}
		if _, err := s.GetIDByName(ctx, "pg-name"); !errors.Is(err, reservation.ErrNotFound) {
			t.Fatalf("name survived delete: %v", err)
		}
	})

	t.Run("racing name reservations see one winner", func(t *testing.T) {
		const writers = 16
		ids := make([]uuid.UUID, writers)
		for i := range ids {
			ids[i] = uuid.New()
		}

		type outcome struct {
			existing uuid.UUID
			inserted bool
		}
		results := make([]outcome, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				existing, inserted, err := s.PutNameIfAbsent(ctx, "contested-name", ids[i])
				if err != nil {
					t.Errorf("writer %d: %v", i, err)
					return
				}
				results[i] = outcome{existing: existing, inserted: inserted}
			}(i)
		}
		wg.Wait()

		winners := 0
		var winner uuid.UUID
		for _, r := range results {
			if r.inserted {
				winners++
				winner = r.existing
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winner, got %d", winners)
		}
		for i, r := range results {
			if r.existing != winner {
				t.Fatalf("writer %d saw id %s, winner holds %s", i, r.existing, winner)
			}
		}
	})

	t.Run("decision log round trip", func(t *testing.T) {
		e := &authlog.Entry{
			ID:         id.NewDecisionLogID(),
			AclKey:     "pg-log-key",
			Principals: []string{"USER|u1"},
			Requested:  []string{"READ"},
			Granted:    []string{"READ", "WRITE"},
			Allowed:    true,
			EvalTimeNs: 1234,
			CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		}
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		entries, err := s.ListEntries(ctx, &authlog.QueryFilter{AclKey: "pg-log-key"})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].ID.String() != e.ID.String() || !entries[0].Allowed {
			t.Fatalf("round trip failed: %+v", entries)
		}

		purged, err := s.PurgeEntries(ctx, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if purged < 1 {
			t.Fatalf("expected purge to remove entries, got %d", purged)
		}
	})
}
