// Package memory provides an in-memory implementation of the composite
// store. It is intended for testing and development.
//
// The ace table is partitioned into shards; each mutator runs as a
// read-modify-write under its shard lock, which gives the at-most-one
// concurrent mutation per (AclKey, Principal) guarantee the contract
// requires while letting different keys mutate in parallel.
package memory

import (
	"context"
	"encoding/base64"
	"hash/fnv"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/authlog"
	"github.com/parallax-data/bastion/principal"
	"github.com/parallax-data/bastion/reservation"
	"github.com/parallax-data/bastion/store"
)

// Compile-time interface checks.
var (
	_ ace.Store         = (*Store)(nil)
	_ reservation.Store = (*Store)(nil)
	_ authlog.Store     = (*Store)(nil)
	_ store.Store       = (*Store)(nil)
)

const shardCount = 16

type aceShard struct {
	mu   sync.RWMutex
	aces map[string]*aceRecord // ace.Key row key -> record
}

type aceRecord struct {
	key   ace.Key
	value ace.Value
}

// Store is a thread-safe in-memory store for all bastion entities.
type Store struct {
	shards [shardCount]*aceShard

	otMu        sync.RWMutex
	objectTypes map[string]objectTypeRecord // acl key index -> record

	resMu    sync.Mutex
	nameToID map[string]uuid.UUID
	idToName map[uuid.UUID]string

	logMu sync.RWMutex
	logs  map[string]*authlog.Entry
}

type objectTypeRecord struct {
	key ace.AclKey
	t   ace.ObjectType
}

// New creates a new in-memory store.
func New() *Store {
	s := &Store{
		objectTypes: make(map[string]objectTypeRecord),
		nameToID:    make(map[string]uuid.UUID),
		idToName:    make(map[uuid.UUID]string),
		logs:        make(map[string]*authlog.Entry),
	}
	for i := range s.shards {
		s.shards[i] = &aceShard{aces: make(map[string]*aceRecord)}
	}
	return s
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func (s *Store) shardFor(rowKey string) *aceShard {
	h := fnv.New32a()
	h.Write([]byte(rowKey))
	return s.shards[h.Sum32()%shardCount]
}

// mutate applies a pure update function to the value under k, atomically
// with respect to any other mutation of the same key. A nil return from fn
// when no record exists leaves the table untouched.
func (s *Store) mutate(k ace.Key, fn func(old *ace.Value) *ace.Value) {
	rowKey := k.String()
	sh := s.shardFor(rowKey)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var old *ace.Value
	if rec, ok := sh.aces[rowKey]; ok {
		v := rec.value
		old = &v
	}
	next := fn(old)
	if next == nil {
		return
	}
	sh.aces[rowKey] = &aceRecord{key: k, value: *next}
}

// ──────────────────────────────────────────────────
// Ace store
// ──────────────────────────────────────────────────

func (s *Store) SetObjectType(_ context.Context, key ace.AclKey, t ace.ObjectType) error {
	idx := key.Index()
	s.otMu.Lock()
	s.objectTypes[idx] = objectTypeRecord{key: slices.Clone(key), t: t}
	s.otMu.Unlock()

	// Back-fill the tag onto every existing entry for the key, one
	// independent single-key update at a time.
	prefix := idx + "#"
	for _, sh := range s.shards {
		sh.mu.Lock()
		for rk, rec := range sh.aces {
			if strings.HasPrefix(rk, prefix) {
				rec.value.ObjectType = t
			}
		}
		sh.mu.Unlock()
	}
	return nil
}

func (s *Store) GetObjectType(_ context.Context, key ace.AclKey) (ace.ObjectType, error) {
	s.otMu.RLock()
	defer s.otMu.RUnlock()
	rec, ok := s.objectTypes[key.Index()]
	if !ok {
		return ace.ObjectTypeUnknown, ace.ErrNotFound
	}
	return rec.t, nil
}

func (s *Store) MergePermissions(ctx context.Context, k ace.Key, perms ace.PermissionSet, t ace.ObjectType, expiresAt time.Time) error {
	if t != ace.ObjectTypeUnknown {
		s.otMu.Lock()
		if _, ok := s.objectTypes[k.AclKey.Index()]; !ok {
			s.objectTypes[k.AclKey.Index()] = objectTypeRecord{key: slices.Clone(k.AclKey), t: t}
		}
		s.otMu.Unlock()
	}
	s.mutate(k, func(old *ace.Value) *ace.Value {
		next := ace.Value{Permissions: perms, ObjectType: t, ExpiresAt: expiresAt}
		if old != nil {
			next.Permissions = old.Permissions.Union(perms)
			if t == ace.ObjectTypeUnknown {
				next.ObjectType = old.ObjectType
			}
		}
		return &next
	})
	return nil
}

func (s *Store) RemovePermissions(_ context.Context, k ace.Key, perms ace.PermissionSet) error {
	s.mutate(k, func(old *ace.Value) *ace.Value {
		if old == nil {
			return nil
		}
		next := *old
		next.Permissions = old.Permissions.Subtract(perms)
		return &next
	})
	return nil
}

func (s *Store) OverwritePermissions(ctx context.Context, k ace.Key, perms ace.PermissionSet, expiresAt time.Time) error {
	t, err := s.GetObjectType(ctx, k.AclKey)
	if err != nil {
		t = ace.ObjectTypeUnknown
	}
	s.mutate(k, func(_ *ace.Value) *ace.Value {
		return &ace.Value{Permissions: perms, ObjectType: t, ExpiresAt: expiresAt}
	})
	return nil
}

func (s *Store) GetAce(_ context.Context, k ace.Key) (*ace.Ace, error) {
	rowKey := k.String()
	sh := s.shardFor(rowKey)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.aces[rowKey]
	if !ok {
		return nil, ace.ErrNotFound
	}
	return &ace.Ace{Key: rec.key, Value: rec.value}, nil
}

func (s *Store) GetAces(ctx context.Context, keys []ace.Key) ([]ace.Ace, error) {
	result := make([]ace.Ace, 0, len(keys))
	for _, k := range keys {
		a, err := s.GetAce(ctx, k)
		if err != nil {
			continue
		}
		result = append(result, *a)
	}
	return result, nil
}

func (s *Store) ListAcesByAclKey(_ context.Context, key ace.AclKey) ([]ace.Ace, error) {
	prefix := key.Index() + "#"
	var result []ace.Ace
	for _, sh := range s.shards {
		sh.mu.RLock()
		for rk, rec := range sh.aces {
			if strings.HasPrefix(rk, prefix) {
				result = append(result, ace.Ace{Key: rec.key, Value: rec.value})
			}
		}
		sh.mu.RUnlock()
	}
	return result, nil
}

func (s *Store) ListAcesByPrincipal(_ context.Context, p principal.Principal) ([]ace.Ace, error) {
	var result []ace.Ace
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.aces {
			if rec.key.Principal == p {
				result = append(result, ace.Ace{Key: rec.key, Value: rec.value})
			}
		}
		sh.mu.RUnlock()
	}
	return result, nil
}

func (s *Store) DeleteByAclKey(_ context.Context, key ace.AclKey) error {
	idx := key.Index()
	prefix := idx + "#"
	for _, sh := range s.shards {
		sh.mu.Lock()
		for rk := range sh.aces {
			if strings.HasPrefix(rk, prefix) {
				delete(sh.aces, rk)
			}
		}
		sh.mu.Unlock()
	}
	s.otMu.Lock()
	delete(s.objectTypes, idx)
	s.otMu.Unlock()
	return nil
}

func (s *Store) DeleteByPrincipal(_ context.Context, p principal.Principal) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for rk, rec := range sh.aces {
			if rec.key.Principal == p {
				delete(sh.aces, rk)
			}
		}
		sh.mu.Unlock()
	}
	return nil
}

func (s *Store) ListAclKeysByTypeAndExactPermissions(_ context.Context, ps principal.Set, objectType ace.ObjectType, perms ace.PermissionSet) ([]ace.AclKey, error) {
	now := time.Now()
	seen := make(map[string]struct{})
	var result []ace.AclKey
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.aces {
			if rec.value.ObjectType != objectType || rec.value.Permissions != perms {
				continue
			}
			if rec.value.Expired(now) || !ps.Contains(rec.key.Principal) {
				continue
			}
			idx := rec.key.AclKey.Index()
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			result = append(result, rec.key.AclKey)
		}
		sh.mu.RUnlock()
	}
	slices.SortFunc(result, ace.AclKey.Compare)
	return result, nil
}

func (s *Store) ListAuthorizedAclKeys(_ context.Context, ps principal.Set, perms ace.PermissionSet, bookmark string, limit int) ([]ace.AclKey, string, error) {
	after, err := decodeBookmark(bookmark)
	if err != nil {
		return nil, "", err
	}
	now := time.Now()

	// Collect matching row keys, then walk them in row-key order so the
	// bookmark is a stable cursor.
	type match struct {
		rowKey string
		key    ace.AclKey
	}
	var matches []match
	for _, sh := range s.shards {
		sh.mu.RLock()
		for rk, rec := range sh.aces {
			if rk <= after || rec.value.Expired(now) {
				continue
			}
			if !rec.value.Permissions.ContainsAll(perms) || !ps.Contains(rec.key.Principal) {
				continue
			}
			matches = append(matches, match{rowKey: rk, key: rec.key.AclKey})
		}
		sh.mu.RUnlock()
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].rowKey < matches[j].rowKey })

	seen := make(map[string]struct{})
	var keys []ace.AclKey
	var last string
	for _, m := range matches {
		idx := m.key.Index()
		if _, dup := seen[idx]; dup {
			// Consume rows of already-listed keys so the bookmark lands
			// past them and the next page starts on a fresh key.
			last = m.rowKey
			continue
		}
		if limit > 0 && len(keys) >= limit {
			return keys, encodeBookmark(last), nil
		}
		last = m.rowKey
		seen[idx] = struct{}{}
		keys = append(keys, m.key)
	}
	return keys, "", nil
}

func encodeBookmark(rowKey string) string {
	if rowKey == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(rowKey))
}

func decodeBookmark(bookmark string) (string, error) {
	if bookmark == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(bookmark)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ──────────────────────────────────────────────────
// Reservation store
// ──────────────────────────────────────────────────

func (s *Store) PutNameIfAbsent(_ context.Context, name string, id uuid.UUID) (uuid.UUID, bool, error) {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	if existing, ok := s.nameToID[name]; ok {
		return existing, false, nil
	}
	s.nameToID[name] = id
	return id, true, nil
}

func (s *Store) PutIDIfAbsent(_ context.Context, id uuid.UUID, name string) (string, bool, error) {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	if existing, ok := s.idToName[id]; ok {
		return existing, false, nil
	}
	s.idToName[id] = name
	return name, true, nil
}

func (s *Store) GetIDByName(_ context.Context, name string) (uuid.UUID, error) {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	id, ok := s.nameToID[name]
	if !ok {
		return uuid.Nil, reservation.ErrNotFound
	}
	return id, nil
}

func (s *Store) GetNameByID(_ context.Context, id uuid.UUID) (string, error) {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	name, ok := s.idToName[id]
	if !ok {
		return "", reservation.ErrNotFound
	}
	return name, nil
}

func (s *Store) SetNameForID(_ context.Context, id uuid.UUID, name string) error {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	s.idToName[id] = name
	return nil
}

func (s *Store) DeleteName(_ context.Context, name string) error {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	delete(s.nameToID, name)
	return nil
}

func (s *Store) DeleteID(_ context.Context, id uuid.UUID) error {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	delete(s.idToName, id)
	return nil
}

// ──────────────────────────────────────────────────
// Decision log store
// ──────────────────────────────────────────────────

func (s *Store) CreateEntry(_ context.Context, e *authlog.Entry) error {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	c := *e
	s.logs[e.ID.String()] = &c
	return nil
}

func (s *Store) ListEntries(_ context.Context, filter *authlog.QueryFilter) ([]*authlog.Entry, error) {
	s.logMu.RLock()
	defer s.logMu.RUnlock()
	result := make([]*authlog.Entry, 0, len(s.logs))
	for _, e := range s.logs {
		if filter != nil {
			if filter.AclKey != "" && e.AclKey != filter.AclKey {
				continue
			}
			if filter.Principal != "" && !slices.Contains(e.Principals, filter.Principal) {
				continue
			}
			if filter.Allowed != nil && e.Allowed != *filter.Allowed {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		c := *e
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if filter != nil {
		result = applyPagination(result, filter.Offset, filter.Limit)
	}
	return result, nil
}

func (s *Store) PurgeEntries(_ context.Context, before time.Time) (int64, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	var count int64
	for k, e := range s.logs {
		if e.CreatedAt.Before(before) {
			delete(s.logs, k)
			count++
		}
	}
	return count, nil
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
