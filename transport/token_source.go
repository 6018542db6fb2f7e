package transport

import (
	"context"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/token"
	"golang.org/x/oauth2"
)

// TokenSource exposes the session as an oauth2.TokenSource, refreshing
// through the shared refresher when the held token is expired. A token
// without exp is handed out as is; the server decides when it is rejected.
type TokenSource struct {
	store     TokenStore
	codec     *token.Codec
	refresher Refresher
}

var _ oauth2.TokenSource = (*TokenSource)(nil)

func NewTokenSource(store TokenStore, codec *token.Codec, refresher Refresher) *TokenSource {
	return &TokenSource{store: store, codec: codec, refresher: refresher}
}

// Token is TokenContext without a deadline on the refresh
func (s *TokenSource) Token() (*oauth2.Token, error) {
	return s.TokenContext(context.Background())
}

// TokenContext returns the current token, bounding any refresh by ctx
func (s *TokenSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	raw, ok := s.store.Token()
	if !ok {
		return nil, apperrors.ErrNoToken
	}

	expiry := s.codec.Expiry(raw)
	if !expiry.IsZero() && s.codec.IsExpired(raw) {
		fresh, err := s.refresher.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		raw = fresh
		expiry = s.codec.Expiry(raw)
	}
	return &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
