package refresh

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of one refresh call against the backend
type Result struct {
	AccessToken string
	CSRFToken   string
}

// Refresher performs the network refresh. It must authenticate with the
// refresh cookie and never with the access token.
type Refresher interface {
	Refresh(ctx context.Context) (*Result, error)
}

// RefresherFunc adapts a function to Refresher
type RefresherFunc func(ctx context.Context) (*Result, error)

func (f RefresherFunc) Refresh(ctx context.Context) (*Result, error) {
	return f(ctx)
}

// SessionWriter is the part of the session store the coordinator mutates
type SessionWriter interface {
	UpdateTokens(accessToken, csrfToken string) error
	Clear()
}

type outcome struct {
	token string
	err   error
}

// Coordinator guarantees at most one refresh call in flight. Callers arriving
// while a refresh runs are queued and all receive the same outcome, in
// arrival order, once it settles.
type Coordinator struct {
	mu        sync.Mutex
	inFlight  bool
	waiters   []chan outcome
	refresher Refresher
	store     SessionWriter
	logger    zerolog.Logger
}

type Option func(*Coordinator)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func NewCoordinator(refresher Refresher, store SessionWriter, options ...Option) *Coordinator {
	c := &Coordinator{
		refresher: refresher,
		store:     store,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Refresh returns a new access token, joining the in-flight refresh if there
// is one. Cancelling ctx only stops this caller waiting; the refresh itself
// runs to completion because other requests may depend on it.
//
// On failure the session has already been cleared and the error is terminal:
// callers must not retry.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	ch := make(chan outcome, 1)

	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	start := !c.inFlight
	c.inFlight = true
	c.mu.Unlock()

	if start {
		go c.run(context.WithoutCancel(ctx))
	}

	select {
	case o := <-ch:
		return o.token, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// InFlight reports whether a refresh call is currently running
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Waiting is the number of callers queued on the in-flight refresh
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *Coordinator) run(ctx context.Context) {
	c.logger.Debug().Msg("refresh started")

	var newToken string
	res, err := c.refresher.Refresh(ctx)
	if err == nil && (res == nil || !token.WellFormed(res.AccessToken)) {
		// a 2xx with an unusable token is not trusted
		err = &apperrors.AuthTerminalError{Reason: apperrors.ReasonSessionExpired, Err: apperrors.ErrInvalidToken}
	}

	if err == nil {
		if uerr := c.store.UpdateTokens(res.AccessToken, res.CSRFToken); uerr != nil {
			if apperrors.Is(uerr, apperrors.ErrInvalidToken) || apperrors.Is(uerr, apperrors.ErrSessionNotFound) {
				// unusable token, or the session ended while the refresh ran
				err = &apperrors.AuthTerminalError{Reason: apperrors.ReasonSessionExpired, Err: uerr}
			} else {
				// held in memory; only the durable mirror is behind
				c.logger.Err(uerr).Msg("refresh: failed to persist new token")
			}
		}
	}
	if err == nil {
		newToken = res.AccessToken
	} else {
		c.store.Clear()
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Int("waiters", len(waiters)).Msg("refresh failed, session cleared")
	} else {
		c.logger.Debug().Int("waiters", len(waiters)).Msg("refresh succeeded")
	}

	for _, w := range waiters {
		w <- outcome{token: newToken, err: err}
	}
}
