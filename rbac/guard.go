package rbac

import (
	"context"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Rule is what a protected route requires. Roles and Permissions must both
// hold when both are set.
type Rule struct {
	Permissions []Requirement
	Roles       []string
	Mode        Mode
	// Refresh drops the memoised permissions before checking
	Refresh bool
}

// Decision is the outcome of a guard check. Reason is set when access is denied.
type Decision struct {
	Allowed bool
	Reason  apperrors.Reason
}

// Authenticator reports whether a session is held
type Authenticator interface {
	IsAuthenticated() bool
}

// Guard decides route access from the session and the permission cache
type Guard struct {
	session Authenticator
	cache   *Cache
	logger  zerolog.Logger
}

type GuardOption func(*Guard)

func WithGuardLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(session Authenticator, cache *Cache, options ...GuardOption) *Guard {
	g := &Guard{
		session: session,
		cache:   cache,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Check evaluates rule. Permission rules load the permissions first; if that
// fails the last known snapshot is used.
func (g *Guard) Check(ctx context.Context, rule Rule) Decision {
	if !g.session.IsAuthenticated() {
		return Decision{Reason: apperrors.ReasonSessionExpired}
	}

	if rule.Refresh {
		g.cache.ClearCache()
	}
	if rule.Refresh || len(rule.Permissions) > 0 {
		if _, err := g.cache.FetchMyPermissions(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("Guard.Check: using last known permissions")
		}
	}

	snap := g.cache.Snapshot()
	if !EvaluateRoles(snap, rule.Roles, rule.Mode) || !Evaluate(snap, rule.Permissions, rule.Mode) {
		return Decision{Reason: apperrors.ReasonInsufficientRole}
	}
	return Decision{Allowed: true}
}
