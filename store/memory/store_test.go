package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/authlog"
	"github.com/parallax-data/bastion/id"
	"github.com/parallax-data/bastion/principal"
)

func testKey(t *testing.T, p string) ace.Key {
	t.Helper()
	return ace.Key{
		AclKey:    ace.MustAclKey(uuid.New()),
		Principal: principal.Principal{Type: principal.TypeUser, ID: p},
	}
}

func TestMergePermissions_UnionsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	k := testKey(t, "u1")

	if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Read), ace.ObjectTypeUnknown, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Write, ace.Read), ace.ObjectTypeUnknown, time.Time{}); err != nil {
		t.Fatal(err)
	}

	a, err := s.GetAce(ctx, k)
	if err != nil {
		t.Fatal(err)
	}
	if a.Value.Permissions != ace.Permissions(ace.Read, ace.Write) {
		t.Fatalf("got %s", a.Value.Permissions)
	}
}

func TestMergePermissions_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := New()
	k := testKey(t, "u1")
	perms := ace.AllPermissions.Slice()

	var wg sync.WaitGroup
	for _, p := range perms {
		wg.Add(1)
		go func(p ace.Permission) {
			defer wg.Done()
			if err := s.MergePermissions(ctx, k, ace.Permissions(p), ace.ObjectTypeUnknown, time.Time{}); err != nil {
				t.Error(err)
			}
		}(p)
	}
	wg.Wait()

	a, err := s.GetAce(ctx, k)
	if err != nil {
		t.Fatal(err)
	}
	// No concurrent merge may be lost.
	if a.Value.Permissions != ace.AllPermissions {
		t.Fatalf("lost update: got %s", a.Value.Permissions)
	}
}

func TestRemovePermissions(t *testing.T) {
	ctx := context.Background()
	s := New()
	k := testKey(t, "u1")

	// Removing from an absent entry must not create one.
	if err := s.RemovePermissions(ctx, k, ace.Permissions(ace.Read)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetAce(ctx, k); !errors.Is(err, ace.ErrNotFound) {
		t.Fatalf("remove created an entry: %v", err)
	}

	if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Read, ace.Write), ace.ObjectTypeUnknown, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := s.RemovePermissions(ctx, k, ace.Permissions(ace.Write, ace.Owner)); err != nil {
		t.Fatal(err)
	}

	a, err := s.GetAce(ctx, k)
	if err != nil {
		t.Fatal(err)
	}
	if a.Value.Permissions != ace.Permissions(ace.Read) {
		t.Fatalf("got %s", a.Value.Permissions)
	}

	// Removing everything leaves an empty-but-present entry.
	if err := s.RemovePermissions(ctx, k, ace.AllPermissions); err != nil {
		t.Fatal(err)
	}
	a, err = s.GetAce(ctx, k)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Value.Permissions.IsEmpty() {
		t.Fatalf("expected empty set, got %s", a.Value.Permissions)
	}
}

func TestOverwritePermissions_PreservesObjectType(t *testing.T) {
	ctx := context.Background()
	s := New()
	k := testKey(t, "u1")

	if err := s.MergePermissions(ctx, k, ace.AllPermissions, ace.ObjectTypeEntitySet, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := s.OverwritePermissions(ctx, k, ace.Permissions(ace.Read), time.Time{}); err != nil {
		t.Fatal(err)
	}

	a, err := s.GetAce(ctx, k)
	if err != nil {
		t.Fatal(err)
	}
	if a.Value.Permissions != ace.Permissions(ace.Read) {
		t.Fatalf("got %s", a.Value.Permissions)
	}
	if a.Value.ObjectType != ace.ObjectTypeEntitySet {
		t.Fatalf("object type lost: got %q", a.Value.ObjectType)
	}
}

func TestSetObjectType_BackFills(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := ace.MustAclKey(uuid.New())

	for _, u := range []string{"u1", "u2", "u3"} {
		k := ace.Key{AclKey: key, Principal: principal.Principal{Type: principal.TypeUser, ID: u}}
		if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Read), ace.ObjectTypeUnknown, time.Time{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetObjectType(ctx, key, ace.ObjectTypeOrganization); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetObjectType(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got != ace.ObjectTypeOrganization {
		t.Fatalf("got %q", got)
	}
	aces, err := s.ListAcesByAclKey(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(aces) != 3 {
		t.Fatalf("expected 3 aces, got %d", len(aces))
	}
	for _, a := range aces {
		if a.Value.ObjectType != ace.ObjectTypeOrganization {
			t.Fatalf("ace for %s not back-filled", a.Key.Principal)
		}
	}
}

func TestDeleteByAclKey_Cascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := ace.MustAclKey(uuid.New())
	k := ace.Key{AclKey: key, Principal: principal.Principal{Type: principal.TypeUser, ID: "u1"}}

	if err := s.MergePermissions(ctx, k, ace.AllPermissions, ace.ObjectTypeEntitySet, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteByAclKey(ctx, key); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetAce(ctx, k); !errors.Is(err, ace.ErrNotFound) {
		t.Fatalf("ace survived delete: %v", err)
	}
	if _, err := s.GetObjectType(ctx, key); !errors.Is(err, ace.ErrNotFound) {
		t.Fatalf("object type survived delete: %v", err)
	}
}

func TestGetAces_OmitsAbsent(t *testing.T) {
	ctx := context.Background()
	s := New()
	present := testKey(t, "u1")
	absent := testKey(t, "u2")

	if err := s.MergePermissions(ctx, present, ace.Permissions(ace.Read), ace.ObjectTypeUnknown, time.Time{}); err != nil {
		t.Fatal(err)
	}

	aces, err := s.GetAces(ctx, []ace.Key{present, absent})
	if err != nil {
		t.Fatal(err)
	}
	if len(aces) != 1 {
		t.Fatalf("expected 1 ace, got %d", len(aces))
	}
	if aces[0].Key.String() != present.String() {
		t.Fatalf("wrong ace returned: %s", aces[0].Key)
	}
}

func TestListAuthorizedAclKeys_PaginatesAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	u1 := principal.Principal{Type: principal.TypeUser, ID: "u1"}
	r1 := principal.Principal{Type: principal.TypeRole, ID: "r1"}
	ps := principal.NewSet(u1, r1)

	want := make(map[string]bool)
	for i := 0; i < 10; i++ {
		key := ace.MustAclKey(uuid.New())
		want[key.Index()] = true
		// Both principals hold Read on every key, so each key matches twice.
		for _, p := range []principal.Principal{u1, r1} {
			k := ace.Key{AclKey: key, Principal: p}
			if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Read), ace.ObjectTypeUnknown, time.Time{}); err != nil {
				t.Fatal(err)
			}
		}
	}
	// An expired entry must never surface.
	expiredKey := ace.MustAclKey(uuid.New())
	if err := s.MergePermissions(ctx, ace.Key{AclKey: expiredKey, Principal: u1},
		ace.Permissions(ace.Read), ace.ObjectTypeUnknown, time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	got := make(map[string]bool)
	bookmark := ""
	for {
		keys, next, err := s.ListAuthorizedAclKeys(ctx, ps, ace.Permissions(ace.Read), bookmark, 3)
		if err != nil {
			t.Fatal(err)
		}
		for _, k := range keys {
			if got[k.Index()] {
				t.Fatalf("key %s repeated", k.Index())
			}
			got[k.Index()] = true
		}
		if next == "" {
			break
		}
		bookmark = next
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(got))
	}
	if got[expiredKey.Index()] {
		t.Fatal("expired entry surfaced in scan")
	}
}

func TestListAuthorizedAclKeys_PageFillsOnDuplicateRow(t *testing.T) {
	ctx := context.Background()
	s := New()
	u1 := principal.Principal{Type: principal.TypeUser, ID: "u1"}
	r1 := principal.Principal{Type: principal.TypeRole, ID: "r1"}
	ps := principal.NewSet(u1, r1)

	// Two keys, each granted to both principals, so every key owns an
	// adjacent pair of rows in row-key order. With limit 1 each page fills
	// exactly on a pair's second row; the bookmark must still step past it.
	keys := []ace.AclKey{ace.MustAclKey(uuid.New()), ace.MustAclKey(uuid.New())}
	for _, key := range keys {
		for _, p := range []principal.Principal{u1, r1} {
			k := ace.Key{AclKey: key, Principal: p}
			if err := s.MergePermissions(ctx, k, ace.Permissions(ace.Read), ace.ObjectTypeUnknown, time.Time{}); err != nil {
				t.Fatal(err)
			}
		}
	}

	got := make(map[string]int)
	bookmark := ""
	pages := 0
	for {
		page, next, err := s.ListAuthorizedAclKeys(ctx, ps, ace.Permissions(ace.Read), bookmark, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(page) > 1 {
			t.Fatalf("page exceeded limit: %d keys", len(page))
		}
		for _, k := range page {
			got[k.Index()]++
		}
		pages++
		if pages > 10 {
			t.Fatal("pagination never terminated")
		}
		if next == "" {
			break
		}
		bookmark = next
	}

	if len(got) != len(keys) {
		t.Fatalf("expected %d distinct keys, got %d", len(keys), len(got))
	}
	for idx, n := range got {
		if n != 1 {
			t.Fatalf("key %s returned %d times", idx, n)
		}
	}
}

func TestListAclKeysByTypeAndExactPermissions(t *testing.T) {
	ctx := context.Background()
	s := New()
	u1 := principal.Principal{Type: principal.TypeUser, ID: "u1"}
	ps := principal.NewSet(u1)

	exact := ace.MustAclKey(uuid.New())
	if err := s.MergePermissions(ctx, ace.Key{AclKey: exact, Principal: u1},
		ace.Permissions(ace.Read, ace.Write), ace.ObjectTypeEntitySet, time.Time{}); err != nil {
		t.Fatal(err)
	}
	// Superset must not match.
	superset := ace.MustAclKey(uuid.New())
	if err := s.MergePermissions(ctx, ace.Key{AclKey: superset, Principal: u1},
		ace.Permissions(ace.Read, ace.Write, ace.Owner), ace.ObjectTypeEntitySet, time.Time{}); err != nil {
		t.Fatal(err)
	}
	// Wrong type must not match.
	wrongType := ace.MustAclKey(uuid.New())
	if err := s.MergePermissions(ctx, ace.Key{AclKey: wrongType, Principal: u1},
		ace.Permissions(ace.Read, ace.Write), ace.ObjectTypeRole, time.Time{}); err != nil {
		t.Fatal(err)
	}

	keys, err := s.ListAclKeysByTypeAndExactPermissions(ctx, ps, ace.ObjectTypeEntitySet, ace.Permissions(ace.Read, ace.Write))
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || !keys[0].Equal(exact) {
		t.Fatalf("expected exactly the exact-match key, got %v", keys)
	}
}

func TestDecisionLog(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		e := &authlog.Entry{
			ID:         id.NewDecisionLogID(),
			AclKey:     "k1",
			Principals: []string{"USER|u1"},
			Requested:  []string{"READ"},
			Allowed:    i%2 == 0,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.ListEntries(ctx, &authlog.QueryFilter{AclKey: "k1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Fatal("entries not newest first")
		}
	}

	denied := false
	list, err := s.ListEntries(ctx, &authlog.QueryFilter{Allowed: &denied})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 denied entries, got %d", len(list))
	}

	purged, err := s.PurgeEntries(ctx, base.Add(3*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 3 {
		t.Fatalf("expected 3 purged, got %d", purged)
	}
}
