package bastion

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parallax-data/bastion/ace"
	"github.com/parallax-data/bastion/authlog"
	"github.com/parallax-data/bastion/hook"
	"github.com/parallax-data/bastion/id"
	"github.com/parallax-data/bastion/principal"
	"github.com/parallax-data/bastion/store"
)

// Engine is the central decision engine. It answers permission queries over
// the explicit Ace table, aggregating across the caller's principal set with
// OR semantics per permission and AND semantics across the requested set.
// Absence of any matching Ace means deny.
//
// The engine never mutates permissions; mutations go through the store (or
// the Authorizer facade, which adds access control and event hooks on top).
type Engine struct {
	store  store.Store
	hooks  *hook.Registry
	logger *slog.Logger
	config Config
}

// NewEngine creates a new decision engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("bastion: store is required")
	}
	if e.hooks == nil {
		e.hooks = hook.NewRegistry(e.logger)
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Hooks returns the engine's event hook registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// CheckPermissions reports whether the principal set holds every permission
// in required on the given object. This is the hot path: a single bulk fetch
// of one row per principal, folded in memory. Expired entries never
// contribute.
func (e *Engine) CheckPermissions(ctx context.Context, key ace.AclKey, ps principal.Set, required ace.PermissionSet) (bool, error) {
	start := time.Now()

	effective, err := e.effectivePermissions(ctx, []ace.AclKey{key}, ps)
	if err != nil {
		return false, err
	}
	held := effective[key.Index()]
	allowed := held.ContainsAll(required)

	if e.config.AuditDecisions {
		e.auditDecision(ctx, key, ps, required, held, allowed, time.Since(start))
	}
	return allowed, nil
}

// Authorize evaluates a batch of access checks for one principal set. The
// result slice is positionally aligned with checks; each Authorization maps
// every requested permission to its own grant decision, so a caller can
// distinguish "may read but not write" from a flat deny.
func (e *Engine) Authorize(ctx context.Context, checks []AccessCheck, ps principal.Set) ([]Authorization, error) {
	if len(checks) == 0 {
		return nil, nil
	}

	keys := make([]ace.AclKey, 0, len(checks))
	seen := make(map[string]struct{}, len(checks))
	for _, c := range checks {
		idx := c.AclKey.Index()
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		keys = append(keys, c.AclKey)
	}

	effective, err := e.effectivePermissions(ctx, keys, ps)
	if err != nil {
		return nil, err
	}

	out := make([]Authorization, len(checks))
	for i, c := range checks {
		held := effective[c.AclKey.Index()]
		granted := make(map[ace.Permission]bool, len(c.Permissions.Slice()))
		for _, p := range c.Permissions.Slice() {
			granted[p] = held.Contains(p)
		}
		out[i] = Authorization{AclKey: c.AclKey, Granted: granted}
	}
	return out, nil
}

// AccessChecksForPrincipals streams authorization results for an unbounded
// sequence of access checks. Checks are evaluated in chunks so arbitrarily
// large inputs never materialize more than one chunk of store reads at a
// time. Iteration stops at the first store error.
func (e *Engine) AccessChecksForPrincipals(ctx context.Context, checks iter.Seq[AccessCheck], ps principal.Set) iter.Seq2[Authorization, error] {
	return func(yield func(Authorization, error) bool) {
		batch := make([]AccessCheck, 0, e.config.chunkSize())
		flush := func() bool {
			if len(batch) == 0 {
				return true
			}
			results, err := e.Authorize(ctx, batch, ps)
			if err != nil {
				yield(Authorization{}, err)
				return false
			}
			for _, r := range results {
				if !yield(r, nil) {
					return false
				}
			}
			batch = batch[:0]
			return true
		}
		for c := range checks {
			batch = append(batch, c)
			if len(batch) >= e.config.chunkSize() {
				if !flush() {
					return
				}
			}
		}
		flush()
	}
}

// FastAccessChecksForPrincipals is the low-latency variant of
// AccessChecksForPrincipals. It short-circuits each check with point reads
// instead of a batched fetch, which wins when most checks resolve from the
// first principal. Results are identical to the batched path for the same
// store state.
func (e *Engine) FastAccessChecksForPrincipals(ctx context.Context, checks iter.Seq[AccessCheck], ps principal.Set) iter.Seq2[Authorization, error] {
	return func(yield func(Authorization, error) bool) {
		for c := range checks {
			requested := c.Permissions.Slice()
			granted := make(map[ace.Permission]bool, len(requested))
			for _, p := range requested {
				granted[p] = false
			}
			remaining := len(requested)

			for _, pr := range ps {
				if remaining == 0 {
					break
				}
				a, err := e.store.GetAce(ctx, ace.Key{AclKey: c.AclKey, Principal: pr})
				if errors.Is(err, ace.ErrNotFound) {
					continue
				}
				if err != nil {
					yield(Authorization{}, fmt.Errorf("bastion: access check %s: %w", c.AclKey.Index(), err))
					return
				}
				if a.Expired(time.Now()) {
					continue
				}
				for _, p := range requested {
					if !granted[p] && a.Value.Permissions.Contains(p) {
						granted[p] = true
						remaining--
					}
				}
			}
			if !yield(Authorization{AclKey: c.AclKey, Granted: granted}, nil) {
				return
			}
		}
	}
}

// AuthorizedObjectsOfType streams the AclKeys of every object with the given
// type on which the principal set holds exactly the given permission set.
// Exact means set equality on some single Ace, which mirrors how objects are
// seeded at creation and makes the query usable for "objects I own".
func (e *Engine) AuthorizedObjectsOfType(ctx context.Context, ps principal.Set, t ace.ObjectType, perms ace.PermissionSet) iter.Seq2[ace.AclKey, error] {
	return func(yield func(ace.AclKey, error) bool) {
		keys, err := e.store.ListAclKeysByTypeAndExactPermissions(ctx, ps, t, perms)
		if err != nil {
			yield(nil, fmt.Errorf("bastion: authorized objects of type %s: %w", t, err))
			return
		}
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

// AuthorizedObjects returns one page of every AclKey on which the principal
// set holds at least the given permissions. The scan is resumable through
// the page bookmark. When the backing store is unreachable the engine
// degrades to an empty page rather than failing the caller: an authorization
// listing that errors hard takes the whole surface down with it.
func (e *Engine) AuthorizedObjects(ctx context.Context, ps principal.Set, perms ace.PermissionSet, bookmark string, limit int) (AuthorizedObjectsPage, error) {
	if limit <= 0 {
		limit = e.config.pageSize()
	}
	keys, next, err := e.store.ListAuthorizedAclKeys(ctx, ps, perms, bookmark, limit)
	if errors.Is(err, ace.ErrUnavailable) {
		e.logger.Warn("authorized objects scan degraded to empty page",
			slog.String("error", err.Error()),
		)
		return AuthorizedObjectsPage{}, nil
	}
	if err != nil {
		return AuthorizedObjectsPage{}, fmt.Errorf("bastion: authorized objects: %w", err)
	}
	return AuthorizedObjectsPage{Keys: keys, Bookmark: next}, nil
}

// effectivePermissions bulk-fetches the cross product of keys and principals
// and folds the unexpired entries into one effective permission set per
// AclKey index. Fetches run in chunks with bounded parallelism.
func (e *Engine) effectivePermissions(ctx context.Context, keys []ace.AclKey, ps principal.Set) (map[string]ace.PermissionSet, error) {
	pairs := make([]ace.Key, 0, len(keys)*len(ps))
	for _, k := range keys {
		for _, p := range ps {
			pairs = append(pairs, ace.Key{AclKey: k, Principal: p})
		}
	}

	effective := make(map[string]ace.PermissionSet, len(keys))
	if len(pairs) == 0 {
		return effective, nil
	}

	now := time.Now()
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.parallelism())

	size := e.config.chunkSize()
	for start := 0; start < len(pairs); start += size {
		chunk := pairs[start:min(start+size, len(pairs))]
		g.Go(func() error {
			aces, err := e.store.GetAces(ctx, chunk)
			if err != nil {
				return fmt.Errorf("bastion: bulk ace fetch: %w", err)
			}
			mu.Lock()
			for _, a := range aces {
				if a.Expired(now) {
					continue
				}
				idx := a.Key.AclKey.Index()
				effective[idx] = effective[idx].Union(a.Value.Permissions)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return effective, nil
}

// auditDecision writes a decision-log entry on a detached goroutine. Logging
// is best effort; a failed write is reported to the logger and dropped.
func (e *Engine) auditDecision(ctx context.Context, key ace.AclKey, ps principal.Set, required, held ace.PermissionSet, allowed bool, elapsed time.Duration) {
	entry := &authlog.Entry{
		ID:         id.NewDecisionLogID(),
		AclKey:     key.Index(),
		Principals: ps.Strings(),
		Requested:  required.Names(),
		Granted:    held.Names(),
		Allowed:    allowed,
		EvalTimeNs: elapsed.Nanoseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := e.store.CreateEntry(ctx, entry); err != nil {
			e.logger.Warn("decision log write failed",
				slog.String("acl_key", entry.AclKey),
				slog.String("error", err.Error()),
			)
		}
	}()
}
