package rbac

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-console-session/api"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher loads the caller's permissions from the backend
type Fetcher interface {
	MyPermissions(ctx context.Context) (*api.PermissionsResponse, error)
}

// TokenSource yields the current access token
type TokenSource interface {
	Token() (string, bool)
}

type fetchCall struct {
	done     chan struct{}
	snapshot Snapshot
	err      error
}

// Cache holds the last known role and permissions. Queries are answered
// from memory; FetchMyPermissions shares one fetch between all callers and
// memoises the result until ClearCache.
type Cache struct {
	mu             sync.RWMutex
	snapshot       Snapshot
	flight         *fetchCall
	superAdminRole string
	fetcher        Fetcher
	tokens         TokenSource
	codec          *token.Codec
	broker         *Broker[Snapshot]
	logger         zerolog.Logger
}

type CacheOption func(*Cache)

func WithSuperAdminRole(role string) CacheOption {
	return func(c *Cache) {
		if role != "" {
			c.superAdminRole = role
		}
	}
}

func WithLogger(logger zerolog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a cache seeded with the role of the current token. It
// does not call the backend.
func NewCache(fetcher Fetcher, tokens TokenSource, codec *token.Codec, options ...CacheOption) *Cache {
	c := &Cache{
		superAdminRole: DefaultSuperAdminRole,
		fetcher:        fetcher,
		tokens:         tokens,
		codec:          codec,
		logger:         log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	c.broker = NewBroker(Snapshot{})
	c.Reseed()
	return c
}

// Reseed replaces the snapshot with the role (and any embedded permissions)
// of the current token and drops the memoised fetch. Called after login.
func (c *Cache) Reseed() {
	var snap Snapshot
	if raw, ok := c.tokens.Token(); ok {
		if claims, ok := c.codec.Decode(raw); ok {
			snap = newSnapshot(claims.RoleName, claims.RoleID, claims.Permissions, c.superAdminRole)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.flight = nil
	c.setLocked(snap)
}

// FetchMyPermissions returns the memoised permissions, fetching them once if
// needed. Concurrent callers share a single request. A failed fetch is not
// memoised and is returned as a *errors.PermissionFetchError.
func (c *Cache) FetchMyPermissions(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	call := c.flight
	if call == nil {
		call = &fetchCall{done: make(chan struct{})}
		c.flight = call
		go c.fetch(context.WithoutCancel(ctx), call)
	}
	c.mu.Unlock()

	select {
	case <-call.done:
		return call.snapshot, call.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (c *Cache) fetch(ctx context.Context, call *fetchCall) {
	defer close(call.done)

	resp, err := c.fetcher.MyPermissions(ctx)
	if err != nil {
		call.err = &apperrors.PermissionFetchError{Err: err}
		c.mu.Lock()
		if c.flight == call {
			c.flight = nil
		}
		c.mu.Unlock()
		c.logger.Err(err).Msg("Cache.FetchMyPermissions: fetch failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	role := resp.Data.Role
	if role == "" {
		role = c.snapshot.Role
	}
	call.snapshot = newSnapshot(role, c.snapshot.RoleID, resp.Data.Permissions, c.superAdminRole)
	// a clear during the fetch wins; the result still goes to the callers
	if c.flight != call {
		return
	}
	c.setLocked(call.snapshot)
	c.logger.Debug().Str("role", role).Int("permissions", len(call.snapshot.Permissions)).Msg("permissions loaded")
}

// setLocked replaces the snapshot and publishes it. Publishing under c.mu
// keeps subscribers seeing changes in the order they were made.
func (c *Cache) setLocked(snap Snapshot) {
	c.snapshot = snap
	c.broker.Publish(snap)
}

// ClearCache forgets the memoised fetch so the next FetchMyPermissions hits
// the backend. The snapshot is left as is.
func (c *Cache) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flight = nil
}

// ClearAll empties the role and permissions and forgets the memoised fetch
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flight = nil
	c.setLocked(Snapshot{})
}

// Mutate grants or revokes permission on roleID through commit. When roleID
// is the caller's own role the change is applied locally first and undone
// if commit fails. On success the memoised fetch is dropped.
func (c *Cache) Mutate(ctx context.Context, roleID, permission string, granted bool, commit func(ctx context.Context) error) error {
	var had bool
	local := false

	apply := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if roleID == "" || roleID != c.snapshot.RoleID {
			return
		}
		local = true
		had = c.snapshot.Has(permission)
		c.setLocked(c.snapshot.with(permission, granted))
	}
	revert := func() {
		if !local {
			return
		}
		c.mu.Lock()
		c.setLocked(c.snapshot.with(permission, had))
		c.mu.Unlock()
		c.logger.Warn().Str("permission", permission).Bool("granted", granted).Msg("permission change rolled back")
	}

	if err := Optimistic(ctx, apply, commit, revert); err != nil {
		return err
	}
	c.ClearCache()
	return nil
}

// Subscribe delivers every snapshot change, starting with the current one
func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	return c.broker.Subscribe()
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *Cache) Role() string {
	return c.Snapshot().Role
}

func (c *Cache) HasPermission(resource, action string) bool {
	return c.Snapshot().HasPermission(resource, action)
}

func (c *Cache) HasAnyPermission(reqs []Requirement) bool {
	return len(reqs) > 0 && Evaluate(c.Snapshot(), reqs, ModeAny)
}

func (c *Cache) HasAllPermissions(reqs []Requirement) bool {
	return Evaluate(c.Snapshot(), reqs, ModeAll)
}

func (c *Cache) HasRole(role string) bool {
	return EvaluateRoles(c.Snapshot(), []string{role}, ModeAny)
}

func (c *Cache) HasAnyRole(roles []string) bool {
	return len(roles) > 0 && EvaluateRoles(c.Snapshot(), roles, ModeAny)
}
