package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-console-session/api"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultUploadTimeout = 5 * time.Minute
)

// TokenStore is the session state the transport reads and clears
type TokenStore interface {
	Token() (string, bool)
	CSRFToken() string
	Generation() uint64
	Clear()
}

// Refresher obtains a new access token. Implemented by refresh.Coordinator.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Transport attaches the session to outbound requests. A protected request
// that gets a 401 triggers one shared refresh and is retried once with the
// new token; unrecoverable failures clear the session and redirect to login
// once per session generation.
type Transport struct {
	base          http.RoundTripper
	store         TokenStore
	refresher     Refresher
	redirector    Redirector
	routes        Routes
	timeout       time.Duration
	uploadTimeout time.Duration
	requestID     func() string
	codec         *token.Codec
	proactive     time.Duration
	logger        zerolog.Logger

	mu             sync.Mutex
	redirectedGen  uint64
	redirectedOnce bool
}

var _ http.RoundTripper = (*Transport)(nil)

type Option func(*Transport)

func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

func WithRedirector(r Redirector) Option {
	return func(t *Transport) {
		t.redirector = r
	}
}

func WithRoutes(routes Routes) Option {
	return func(t *Transport) {
		t.routes = routes
	}
}

// WithTimeouts sets the per request timeout and the longer upload allowance.
// Zero disables the respective timeout.
func WithTimeouts(request, upload time.Duration) Option {
	return func(t *Transport) {
		t.timeout = request
		t.uploadTimeout = upload
	}
}

func WithRequestIDFunc(f func() string) Option {
	return func(t *Transport) {
		t.requestID = f
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithProactiveRefresh refreshes a token that expires within window before
// sending the request, instead of waiting for the 401.
func WithProactiveRefresh(codec *token.Codec, window time.Duration) Option {
	return func(t *Transport) {
		t.codec = codec
		t.proactive = window
	}
}

func New(store TokenStore, refresher Refresher, options ...Option) *Transport {
	t := &Transport{
		base:          http.DefaultTransport,
		store:         store,
		refresher:     refresher,
		redirector:    noopRedirector{},
		routes:        DefaultRoutes(),
		timeout:       DefaultTimeout,
		uploadTimeout: DefaultUploadTimeout,
		requestID:     uuid.NewString,
		logger:        log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	class := t.routes.Classify(req.URL)

	ctx, cancel := t.withTimeout(req)
	resp, err := t.roundTrip(ctx, req, class)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (t *Transport) roundTrip(ctx context.Context, req *http.Request, class Class) (*http.Response, error) {
	if class != ClassProtected {
		return t.passThrough(ctx, req)
	}

	getBody, firstBody, err := replayableBody(req)
	if err != nil {
		return nil, &apperrors.NetworkError{Op: op(req), Err: err}
	}

	sent, hasToken := t.store.Token()
	if hasToken && t.shouldRefreshEarly(sent) {
		fresh, err := t.refresher.Refresh(ctx)
		if err != nil {
			return nil, t.refreshFailed(req, err)
		}
		sent = fresh
	}

	resp, err := t.send(ctx, req, firstBody, getBody, sent)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	discard(resp)

	if !hasToken {
		return nil, t.terminate(&apperrors.AuthTerminalError{
			Reason: apperrors.ReasonSessionExpired,
			Status: http.StatusUnauthorized,
			Err:    apperrors.ErrNoToken,
		})
	}

	retryToken, err := t.tokenForRetry(ctx, sent)
	if err != nil {
		return nil, t.refreshFailed(req, err)
	}

	var retryBody io.ReadCloser
	if getBody != nil {
		if retryBody, err = getBody(); err != nil {
			return nil, &apperrors.NetworkError{Op: op(req), Err: err}
		}
	}
	t.logger.Debug().Str("op", op(req)).Msg("retrying request with refreshed token")

	resp, err = t.send(ctx, req, retryBody, getBody, retryToken)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	// a retried request is never retried again
	discard(resp)
	return nil, t.terminate(&apperrors.AuthTerminalError{
		Reason: apperrors.ReasonSessionExpired,
		Status: http.StatusUnauthorized,
		Err:    apperrors.ErrAuthExpired,
	})
}

// tokenForRetry decides from the live session, not the token the request
// carried. A session that ended while the request was in flight (logout or
// a failed refresh) is terminal and never refreshed. A token another request
// already refreshed to is reused; otherwise it joins or starts a refresh.
func (t *Transport) tokenForRetry(ctx context.Context, sent string) (string, error) {
	current, ok := t.store.Token()
	if !ok {
		return "", &apperrors.AuthTerminalError{
			Reason: apperrors.ReasonSessionExpired,
			Status: http.StatusUnauthorized,
			Err:    apperrors.ErrSessionNotFound,
		}
	}
	if current != sent {
		return current, nil
	}
	return t.refresher.Refresh(ctx)
}

func (t *Transport) shouldRefreshEarly(tok string) bool {
	if t.codec == nil || t.proactive <= 0 {
		return false
	}
	if t.codec.Expiry(tok).IsZero() {
		return false
	}
	return t.codec.ExpiresWithin(tok, t.proactive)
}

// refreshFailed turns a refresh error into the error returned to the caller.
// A caller that gave up waiting gets a NetworkError and keeps its session.
func (t *Transport) refreshFailed(req *http.Request, err error) error {
	if apperrors.ReasonOf(err) == "" && (apperrors.Is(err, context.DeadlineExceeded) || apperrors.Is(err, context.Canceled)) {
		return &apperrors.NetworkError{Op: op(req), Timeout: apperrors.Is(err, context.DeadlineExceeded), Err: err}
	}

	var terminal *apperrors.AuthTerminalError
	if !apperrors.As(err, &terminal) {
		terminal = &apperrors.AuthTerminalError{Reason: apperrors.ReasonSessionExpired, Err: err}
	}
	return t.terminate(terminal)
}

// passThrough sends auth, logout and external requests untouched: no bearer,
// no request id, no retry.
func (t *Transport) passThrough(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req.Clone(ctx))
	if err != nil {
		return nil, networkError(ctx, req, err)
	}
	if t.routes.IsRefresh(req.URL) && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		discard(resp)
		return nil, t.terminate(apperrors.NewAuthTerminal(resp.StatusCode, apperrors.ErrAuthExpired))
	}
	return resp, nil
}

func (t *Transport) send(ctx context.Context, req *http.Request, body io.ReadCloser, getBody func() (io.ReadCloser, error), bearer string) (*http.Response, error) {
	r := req.Clone(ctx)
	r.Body = body
	r.GetBody = getBody
	t.decorate(r, bearer)

	resp, err := t.base.RoundTrip(r)
	if err != nil {
		return nil, networkError(ctx, req, err)
	}
	return resp, nil
}

func (t *Transport) decorate(r *http.Request, bearer string) {
	if bearer != "" {
		r.Header.Set(api.HeaderAuthorization, "Bearer "+bearer)
	}
	if r.Header.Get(api.HeaderRequestID) == "" {
		r.Header.Set(api.HeaderRequestID, t.requestID())
	}
	if mutating(r.Method) && r.Header.Get(api.HeaderCSRFToken) == "" {
		if csrf := t.store.CSRFToken(); csrf != "" {
			r.Header.Set(api.HeaderCSRFToken, csrf)
		}
	}
}

// terminate clears the session and redirects, at most once per session generation.
func (t *Transport) terminate(err *apperrors.AuthTerminalError) error {
	t.store.Clear()
	gen := t.store.Generation()

	t.mu.Lock()
	already := t.redirectedOnce && t.redirectedGen == gen
	t.redirectedGen = gen
	t.redirectedOnce = true
	t.mu.Unlock()

	if already {
		return err
	}
	t.logger.Warn().Err(err).Str("reason", string(err.Reason)).Msg("session ended, redirecting to login")
	t.redirector.RedirectToLogin(err.Reason)
	return err
}

func (t *Transport) withTimeout(req *http.Request) (context.Context, context.CancelFunc) {
	d := t.timeout
	if t.routes.IsUpload(req) {
		d = t.uploadTimeout
	}
	if d <= 0 {
		return context.WithCancel(req.Context())
	}
	return context.WithTimeout(req.Context(), d)
}

// replayableBody returns a body factory for the retry, buffering the body
// when the request has no GetBody.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), io.ReadCloser, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, req.Body, nil
	}
	if req.GetBody != nil {
		return req.GetBody, req.Body, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, nil, err
	}
	getBody := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	first, _ := getBody()
	return getBody, first, nil
}

func networkError(ctx context.Context, req *http.Request, err error) error {
	timeout := apperrors.Is(ctx.Err(), context.DeadlineExceeded) || apperrors.Is(err, context.DeadlineExceeded)
	var ne net.Error
	if apperrors.As(err, &ne) && ne.Timeout() {
		timeout = true
	}
	return &apperrors.NetworkError{Op: op(req), Timeout: timeout, Err: err}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func op(req *http.Request) string {
	return req.Method + " " + req.URL.Path
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// cancelBody releases the request context once the caller is done with the body
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
