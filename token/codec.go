package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-console-session/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// expiryBuffer is subtracted from exp so a token is treated as expired slightly early
const expiryBuffer = 5 * time.Second

// Claims are the access token claims this client consumes. They are always
// re-derived from the raw token and never stored separately.
type Claims struct {
	Subject     string     // sub
	UserID      string     // user_id, falls back to sub
	RoleName    string     // role_name
	RoleID      string     // role_id (number or string in the token)
	ExpiresAt   *time.Time // exp, nil when absent
	Permissions []string   // permissions, when the backend embeds them
	Raw         jwt.MapClaims
}

// Codec decodes access tokens without verifying their signature.
// Verification is the server's job; the client only reads claims.
type Codec struct {
	parser  *jwt.Parser
	nowFunc func() time.Time
	logger  zerolog.Logger
}

type CodecOption func(*Codec)

func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) CodecOption {
	return func(c *Codec) {
		c.logger = logger
	}
}

func NewCodec(options ...CodecOption) *Codec {
	c := &Codec{
		parser:  jwt.NewParser(),
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// WellFormed reports whether raw has three non-empty dot separated segments
func WellFormed(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// Decode returns the claims of raw, or false on any malformed input.
func (c *Codec) Decode(raw string) (*Claims, bool) {
	claims, err := c.decode(raw)
	if err != nil {
		c.logger.Debug().Err(err).Msg("token decode failed")
		return nil, false
	}
	return claims, true
}

func (c *Codec) decode(raw string) (*Claims, error) {
	if !WellFormed(raw) {
		return nil, errors.New("token is not three dot separated segments")
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := c.parser.ParseUnverified(raw, mapClaims); err != nil {
		return nil, errors.Wrap(err, "Codec.decode ParseUnverified")
	}

	claims := &Claims{
		Subject:  utils.ToString(mapClaims["sub"]),
		UserID:   utils.ToString(mapClaims["user_id"]),
		RoleName: utils.ToString(mapClaims["role_name"]),
		RoleID:   utils.ToString(mapClaims["role_id"]),
		Raw:      mapClaims,
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if perms, ok := mapClaims["permissions"].([]any); ok {
		claims.Permissions = utils.ToStringSlice(perms)
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, errors.Wrap(err, "Codec.decode exp")
	}
	if exp != nil {
		claims.ExpiresAt = utils.Ptr(exp.Time)
	}
	return claims, nil
}

// IsExpired is an advisory check. Undecodable tokens and tokens without exp
// count as expired; otherwise a token expires expiryBuffer before exp.
func (c *Codec) IsExpired(raw string) bool {
	return c.ExpiresWithin(raw, 0)
}

// ExpiresWithin reports whether raw expires (less the safety buffer) within d from now.
func (c *Codec) ExpiresWithin(raw string, d time.Duration) bool {
	claims, ok := c.Decode(raw)
	if !ok || claims.ExpiresAt == nil {
		return true
	}
	deadline := claims.ExpiresAt.Add(-expiryBuffer)
	return !c.nowFunc().Add(d).Before(deadline)
}

// Expiry returns the exp claim of raw, or the zero time.
func (c *Codec) Expiry(raw string) time.Time {
	claims, ok := c.Decode(raw)
	if !ok {
		return time.Time{}
	}
	return utils.Value(claims.ExpiresAt)
}
