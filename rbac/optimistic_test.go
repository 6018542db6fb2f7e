package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jrsteele09/go-console-session/rbac"
	"github.com/stretchr/testify/require"
)

func TestOptimistic(t *testing.T) {
	t.Run("keeps the change on success", func(t *testing.T) {
		state := "old"
		err := rbac.Optimistic(context.Background(),
			func() { state = "new" },
			func(ctx context.Context) error {
				require.Equal(t, "new", state, "applied before commit")
				return nil
			},
			func() { state = "old" },
		)
		require.NoError(t, err)
		require.Equal(t, "new", state)
	})

	t.Run("reverts on failure", func(t *testing.T) {
		state := "old"
		boom := errors.New("boom")
		err := rbac.Optimistic(context.Background(),
			func() { state = "new" },
			func(ctx context.Context) error { return boom },
			func() { state = "old" },
		)
		require.ErrorIs(t, err, boom)
		require.Equal(t, "old", state)
	})
}
