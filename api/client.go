package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxErrorBody = 64 << 10

// Client calls the backend's auth and RBAC endpoints.
//
// It holds two http.Clients sharing one cookie jar: a credential client used
// for login, refresh and logout (cookies only, never a bearer token) and an
// authenticated client for everything else.
type Client struct {
	baseURL *url.URL
	jar     http.CookieJar
	creds   *http.Client
	authed  *http.Client
	csrf    func() string
	logger  zerolog.Logger
}

type Option func(*Client)

// WithCredentialTransport sets the transport for login, refresh and logout
func WithCredentialTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.creds.Transport = rt
	}
}

// WithTimeout bounds login, refresh and logout calls
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.creds.Timeout = d
	}
}

// WithCSRFSource supplies the csrf token sent with refresh and logout
func WithCSRFSource(csrf func() string) Option {
	return func(c *Client) {
		c.csrf = csrf
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("[api NewClient] invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[api NewClient] base URL must be absolute: %q", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("[api NewClient] cookie jar: %w", err)
	}

	c := &Client{
		baseURL: u,
		jar:     jar,
		creds:   &http.Client{Jar: jar, Timeout: 30 * time.Second},
		authed:  &http.Client{Jar: jar},
		csrf:    func() string { return "" },
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// SetTransport installs rt on both clients. rt must pass login, refresh and
// logout through without a bearer token.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.authed.Transport = rt
	c.creds.Transport = rt
}

// HTTPClient is the authenticated client, for resource services built on top of the session.
func (c *Client) HTTPClient() *http.Client {
	return c.authed
}

// URL resolves a backend path against the base URL
func (c *Client) URL(path string) string {
	return c.baseURL.String() + path
}

// Login exchanges credentials for an access token. Wrong credentials are an
// APIError, not a terminal auth failure.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, c.creds, http.MethodPost, RouteAuthLogin, LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges the refresh cookie for a new access token.
// 401 and 403 are terminal for the session.
func (c *Client) Refresh(ctx context.Context) (*RefreshResponse, error) {
	var resp RefreshResponse
	err := c.do(ctx, c.creds, http.MethodPost, RouteAuthRefresh, nil, &resp)
	var apiErr *apperrors.APIError
	if apperrors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		return nil, apperrors.NewAuthTerminal(apiErr.Status, apiErr)
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the backend to end the session. It is best effort; callers
// clear local state regardless of the result.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, c.creds, http.MethodPost, RouteAuthLogout, nil, nil)
}

// MyPermissions fetches the caller's role and permission strings
func (c *Client) MyPermissions(ctx context.Context) (*PermissionsResponse, error) {
	var resp PermissionsResponse
	if err := c.do(ctx, c.authed, http.MethodGet, RouteMyPermissions, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckPermission asks the backend whether the caller may perform action on resource
func (c *Client) CheckPermission(ctx context.Context, resource, action string) (bool, error) {
	var resp CheckPermissionResponse
	if err := c.do(ctx, c.authed, http.MethodPost, RouteCheckPermission, CheckPermissionRequest{Resource: resource, Action: action}, &resp); err != nil {
		return false, err
	}
	return resp.Data.HasPermission, nil
}

// SetRolePermission grants (POST) or revokes (DELETE) a permission on a role
func (c *Client) SetRolePermission(ctx context.Context, roleID, permission string, granted bool) error {
	method := http.MethodDelete
	if granted {
		method = http.MethodPost
	}
	path := fmt.Sprintf(RouteRolePermissions, url.PathEscape(roleID))
	return c.do(ctx, c.authed, method, path, RolePermissionRequest{Permission: permission}, nil)
}

func (c *Client) do(ctx context.Context, client *http.Client, method, path string, body, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrapf(err, "%s: encode body", op)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return apperrors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// auth and logout calls carry no request id
	if client == c.authed && req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if client == c.creds && method != http.MethodGet {
		if csrf := c.csrf(); csrf != "" {
			req.Header.Set(HeaderCSRFToken, csrf)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return toNetworkError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrapf(err, "%s: decode response", op)
	}
	return nil
}

// toNetworkError keeps typed errors produced by the transport (terminal auth
// failures, NetworkErrors) and classifies everything else.
func toNetworkError(op string, err error) error {
	var terminal *apperrors.AuthTerminalError
	if apperrors.As(err, &terminal) {
		return terminal
	}
	var netErr *apperrors.NetworkError
	if apperrors.As(err, &netErr) {
		return netErr
	}

	timeout := apperrors.Is(err, context.DeadlineExceeded)
	var ne net.Error
	if apperrors.As(err, &ne) && ne.Timeout() {
		timeout = true
	}
	return &apperrors.NetworkError{Op: op, Timeout: timeout, Err: err}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &apperrors.APIError{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorResponse
	if len(data) > 0 && json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
