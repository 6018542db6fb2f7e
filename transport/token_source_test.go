package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/sessions"
	"github.com/jrsteele09/go-console-session/sessions/repofake"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/jrsteele09/go-console-session/token/tokentest"
	"github.com/jrsteele09/go-console-session/transport"
	"github.com/stretchr/testify/require"
)

type refresherFunc func(ctx context.Context) (string, error)

func (f refresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

func TestTokenSource(t *testing.T) {
	codec := token.NewCodec()

	t.Run("no session", func(t *testing.T) {
		store := sessions.NewStore(repofake.NewFakeStorage())
		src := transport.NewTokenSource(store, codec, refresherFunc(func(context.Context) (string, error) {
			return "", errors.New("unexpected")
		}))
		_, err := src.Token()
		require.ErrorIs(t, err, apperrors.ErrNoToken)
	})

	t.Run("valid token carries its expiry", func(t *testing.T) {
		exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
		raw := tokentest.Mint(t, "user-1", tokentest.WithExpiry(exp))
		store := sessions.NewStore(repofake.NewFakeStorage())
		require.NoError(t, store.SetSession(raw, "", nil))

		src := transport.NewTokenSource(store, codec, refresherFunc(func(context.Context) (string, error) {
			return "", errors.New("unexpected")
		}))
		tok, err := src.Token()
		require.NoError(t, err)
		require.Equal(t, raw, tok.AccessToken)
		require.Equal(t, "Bearer", tok.TokenType)
		require.True(t, exp.Equal(tok.Expiry))
		require.True(t, tok.Valid())
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		old := tokentest.Mint(t, "user-1", tokentest.WithExpiry(time.Now().Add(-time.Minute)))
		fresh := tokentest.Mint(t, "user-1")
		store := sessions.NewStore(repofake.NewFakeStorage())
		require.NoError(t, store.SetSession(old, "", nil))

		src := transport.NewTokenSource(store, codec, refresherFunc(func(context.Context) (string, error) {
			return fresh, nil
		}))
		tok, err := src.Token()
		require.NoError(t, err)
		require.Equal(t, fresh, tok.AccessToken)
	})

	t.Run("token without expiry is not refreshed", func(t *testing.T) {
		raw := tokentest.Mint(t, "user-1", tokentest.WithoutExpiry())
		store := sessions.NewStore(repofake.NewFakeStorage())
		require.NoError(t, store.SetSession(raw, "", nil))

		src := transport.NewTokenSource(store, codec, refresherFunc(func(context.Context) (string, error) {
			return "", errors.New("unexpected")
		}))
		tok, err := src.Token()
		require.NoError(t, err)
		require.Equal(t, raw, tok.AccessToken)
		require.True(t, tok.Expiry.IsZero())
	})

	t.Run("refresh is bounded by the caller", func(t *testing.T) {
		old := tokentest.Mint(t, "user-1", tokentest.WithExpiry(time.Now().Add(-time.Minute)))
		store := sessions.NewStore(repofake.NewFakeStorage())
		require.NoError(t, store.SetSession(old, "", nil))

		src := transport.NewTokenSource(store, codec, refresherFunc(func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := src.TokenContext(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
