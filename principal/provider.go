package principal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parallax-data/bastion/cache"
)

// SessionSource supplies the authenticated identity of the current call
// context. The core treats the id as an opaque string.
type SessionSource interface {
	CallerID(ctx context.Context) (string, error)
}

// MembershipResolver returns every principal the given principal is
// transitively a member of, excluding the principal itself.
type MembershipResolver interface {
	PrincipalsOf(ctx context.Context, p Principal) ([]Principal, error)
}

// ContextSession is a SessionSource reading the id stored by WithCaller.
type ContextSession struct{}

// CallerID implements SessionSource.
func (ContextSession) CallerID(ctx context.Context) (string, error) {
	id, ok := CallerFromContext(ctx)
	if !ok {
		return "", ErrNoCaller
	}
	return id, nil
}

// Provider resolves the caller of the current request to its full principal
// set: the caller itself plus every role and organization it transitively
// belongs to. Two short-TTL caches bound the cost of the membership lookup
// while tolerating slight staleness of newly granted or revoked memberships.
type Provider struct {
	session  SessionSource
	resolver MembershipResolver
	logger   *slog.Logger

	identity *cache.TTL[string, Principal]
	closure  *cache.TTL[string, Set]
}

// ProviderOption configures a Provider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	identityTTL time.Duration
	closureTTL  time.Duration
	logger      *slog.Logger
}

// WithIdentityTTL sets the caller-identity cache TTL. Defaults to 1s.
func WithIdentityTTL(ttl time.Duration) ProviderOption {
	return func(c *providerConfig) { c.identityTTL = ttl }
}

// WithClosureTTL sets the membership-closure cache TTL. Defaults to 30s.
func WithClosureTTL(ttl time.Duration) ProviderOption {
	return func(c *providerConfig) { c.closureTTL = ttl }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(c *providerConfig) { c.logger = l }
}

// NewProvider creates a Provider. Construct one instance per process and
// share it by reference.
func NewProvider(session SessionSource, resolver MembershipResolver, opts ...ProviderOption) *Provider {
	cfg := providerConfig{
		identityTTL: time.Second,
		closureTTL:  30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Provider{
		session:  session,
		resolver: resolver,
		logger:   cfg.logger,
		identity: cache.New[string, Principal](cache.WithTTL(cfg.identityTTL)),
		closure:  cache.New[string, Set](cache.WithTTL(cfg.closureTTL)),
	}
}

// CurrentPrincipals resolves the authenticated caller to a sorted set
// containing itself and every principal it is transitively a member of.
func (pr *Provider) CurrentPrincipals(ctx context.Context) (Set, error) {
	self, err := pr.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return pr.PrincipalsOf(ctx, self)
}

// CurrentUser resolves the authenticated caller to its user principal.
func (pr *Provider) CurrentUser(ctx context.Context) (Principal, error) {
	userID, err := pr.session.CallerID(ctx)
	if err != nil {
		return Principal{}, fmt.Errorf("principal: resolve caller: %w", err)
	}
	if p, ok := pr.identity.Get(userID); ok {
		return p, nil
	}
	p := Principal{Type: TypeUser, ID: userID}
	pr.identity.Set(userID, p)
	return p, nil
}

// PrincipalsOf returns the sorted transitive membership closure of p,
// including p itself.
func (pr *Provider) PrincipalsOf(ctx context.Context, p Principal) (Set, error) {
	key := p.String()
	if s, ok := pr.closure.Get(key); ok {
		return s, nil
	}

	seen := map[Principal]struct{}{p: {}}
	frontier := []Principal{p}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		members, err := pr.resolver.PrincipalsOf(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("principal: membership closure of %s: %w", p, err)
		}
		for _, m := range members {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			frontier = append(frontier, m)
		}
	}

	all := make([]Principal, 0, len(seen))
	for m := range seen {
		all = append(all, m)
	}
	s := NewSet(all...)
	pr.closure.Set(key, s)
	return s, nil
}

// Invalidate drops any cached closure for p. Callers use this after a
// membership grant or revoke that must be visible immediately.
func (pr *Provider) Invalidate(p Principal) {
	pr.closure.Delete(p.String())
}

// RequireOrganization fails fast unless p is an organization principal.
func RequireOrganization(p Principal) error {
	if p.Type != TypeOrganization {
		return fmt.Errorf("%w: %s", ErrNotOrganization, p)
	}
	return nil
}

// EnsureUser fails fast unless p is a user principal.
func EnsureUser(p Principal) error {
	if p.Type != TypeUser {
		return fmt.Errorf("%w: %s", ErrNotUser, p)
	}
	return nil
}
