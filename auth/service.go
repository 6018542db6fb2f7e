package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-console-session/api"
	"github.com/jrsteele09/go-console-session/internal/config"
	"github.com/jrsteele09/go-console-session/rbac"
	"github.com/jrsteele09/go-console-session/sessions"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/jrsteele09/go-console-session/token/refresh"
	"github.com/jrsteele09/go-console-session/transport"
	"github.com/jrsteele09/go-console-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Config is the subset of settings the session needs
type Config interface {
	config.ClientConfig
	config.SessionConfig
	config.RBACConfig
}

// Service is one signed in application session: token storage, refresh,
// the authenticated HTTP client and the permission cache, wired together.
type Service struct {
	codec       *token.Codec
	store       *sessions.Store
	client      *api.Client
	coordinator *refresh.Coordinator
	transport   *transport.Transport
	tokenSource *transport.TokenSource
	cache       *rbac.Cache
	guard       *rbac.Guard
	logger      zerolog.Logger
}

type options struct {
	base       http.RoundTripper
	logRequest bool
	colorLog   bool
	redirector transport.Redirector
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

type Option func(*options)

// WithBaseTransport sets the RoundTripper underneath the session transport
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// WithRequestLogging logs every backend round trip at debug level. color is
// for terminals.
func WithRequestLogging(color bool) Option {
	return func(o *options) {
		o.logRequest = true
		o.colorLog = color
	}
}

// WithRedirector is told when the session ends and the user must log in again
func WithRedirector(r transport.Redirector) Option {
	return func(o *options) {
		o.redirector = r
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New builds a Service over storage, rehydrating any persisted session.
func New(cfg Config, storage sessions.Storage, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("[auth New] config is required")
	}
	if storage == nil {
		return nil, errors.New("[auth New] storage is required")
	}

	o := options{
		base:    http.DefaultTransport,
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{logger: o.logger}
	s.codec = token.NewCodec(token.WithNowFunc(o.nowFunc), token.WithLogger(o.logger))
	s.store = sessions.NewStore(storage, sessions.WithLogger(o.logger))

	client, err := api.NewClient(cfg.GetBaseURL(),
		api.WithCSRFSource(s.store.CSRFToken),
		api.WithTimeout(cfg.GetRequestTimeout()),
		api.WithLogger(o.logger),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[auth New]")
	}
	s.client = client

	s.coordinator = refresh.NewCoordinator(refresh.RefresherFunc(s.refresh), s.store, refresh.WithLogger(o.logger))

	base := o.base
	if o.logRequest {
		base = transport.NewLoggingTransport(base, o.logger, o.colorLog)
	}

	routes := transport.DefaultRoutes().WithExternal(cfg.GetMembersAPIURL())
	if paths := cfg.GetUploadPaths(); len(paths) > 0 {
		routes.Uploads = paths
	}
	transportOptions := []transport.Option{
		transport.WithBase(base),
		transport.WithRoutes(routes),
		transport.WithTimeouts(cfg.GetRequestTimeout(), cfg.GetUploadTimeout()),
		transport.WithLogger(o.logger),
	}
	if o.redirector != nil {
		transportOptions = append(transportOptions, transport.WithRedirector(o.redirector))
	}
	if window := cfg.GetProactiveRefresh(); window > 0 {
		transportOptions = append(transportOptions, transport.WithProactiveRefresh(s.codec, window))
	}
	s.transport = transport.New(s.store, s.coordinator, transportOptions...)
	s.client.SetTransport(s.transport)
	s.tokenSource = transport.NewTokenSource(s.store, s.codec, s.coordinator)

	s.cache = rbac.NewCache(s.client, s.store, s.codec,
		rbac.WithSuperAdminRole(cfg.GetSuperAdminRole()),
		rbac.WithLogger(o.logger),
	)
	s.guard = rbac.NewGuard(s.store, s.cache, rbac.WithGuardLogger(o.logger))
	return s, nil
}

func (s *Service) refresh(ctx context.Context) (*refresh.Result, error) {
	resp, err := s.client.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return &refresh.Result{AccessToken: resp.AccessToken, CSRFToken: resp.CSRFToken}, nil
}

// Login signs in and loads the caller's permissions. A failed permission
// fetch is logged; the session is still established.
func (s *Service) Login(ctx context.Context, email, password string) (*users.UserSummary, error) {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	user := users.SummaryFrom(resp.User)
	if err := s.store.SetSession(resp.AccessToken, resp.CSRFToken, user); err != nil {
		return nil, errors.Wrap(err, "[Service Login] SetSession")
	}
	s.cache.Reseed()

	if _, err := s.cache.FetchMyPermissions(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Service.Login: permissions not loaded")
	}
	s.logger.Info().Str("user", user.Email).Str("role", s.cache.Role()).Msg("signed in")
	return user, nil
}

// Logout ends the session remotely (best effort) and always clears it locally
func (s *Service) Logout(ctx context.Context) {
	if err := s.client.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Service.Logout: remote logout failed")
	}
	s.store.Clear()
	s.cache.ClearAll()
}

// HTTPClient carries the session on every request, for resource services
func (s *Service) HTTPClient() *http.Client {
	return s.client.HTTPClient()
}

// URL resolves a backend path against the configured base URL
func (s *Service) URL(path string) string {
	return s.client.URL(path)
}

// TokenSource exposes the session to oauth2 aware consumers
func (s *Service) TokenSource() oauth2.TokenSource {
	return s.tokenSource
}

// CheckPermission asks the backend, bypassing the local cache
func (s *Service) CheckPermission(ctx context.Context, resource, action string) (bool, error) {
	return s.client.CheckPermission(ctx, resource, action)
}

func (s *Service) GrantPermission(ctx context.Context, roleID, permission string) error {
	return s.setPermission(ctx, roleID, permission, true)
}

func (s *Service) RevokePermission(ctx context.Context, roleID, permission string) error {
	return s.setPermission(ctx, roleID, permission, false)
}

func (s *Service) setPermission(ctx context.Context, roleID, permission string, granted bool) error {
	if _, ok := rbac.ParsePermission(permission); !ok {
		return errors.Errorf("[Service setPermission] permission %q is not resource:action", permission)
	}
	return s.cache.Mutate(ctx, roleID, permission, granted, func(ctx context.Context) error {
		return s.client.SetRolePermission(ctx, roleID, permission, granted)
	})
}

// CurrentUser returns the signed in user, or nil
func (s *Service) CurrentUser() *users.UserSummary {
	return s.store.User()
}

func (s *Service) IsAuthenticated() bool {
	return s.store.IsAuthenticated()
}

func (s *Service) Store() *sessions.Store {
	return s.store
}

func (s *Service) Cache() *rbac.Cache {
	return s.cache
}

func (s *Service) Guard() *rbac.Guard {
	return s.guard
}

func (s *Service) Codec() *token.Codec {
	return s.codec
}
