package rbac_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-console-session/api"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/rbac"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/jrsteele09/go-console-session/token/tokentest"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() (string, bool) {
	return string(s), s != ""
}

type fakeFetcher struct {
	mu          sync.Mutex
	calls       atomic.Int32
	gate        chan struct{}
	role        string
	permissions []string
	err         error
}

func (f *fakeFetcher) MyPermissions(ctx context.Context) (*api.PermissionsResponse, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	resp := &api.PermissionsResponse{}
	resp.Data.Role = f.role
	resp.Data.Permissions = append([]string(nil), f.permissions...)
	return resp, nil
}

func (f *fakeFetcher) set(role string, permissions []string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.role = role
	f.permissions = permissions
	f.err = err
}

func newCache(t *testing.T, f *fakeFetcher, options ...tokentest.Option) *rbac.Cache {
	t.Helper()
	raw := tokentest.Mint(t, "user-1", options...)
	return rbac.NewCache(f, staticToken(raw), token.NewCodec())
}

func TestCache_SeedsRoleFromToken(t *testing.T) {
	f := &fakeFetcher{}
	c := newCache(t, f, tokentest.WithRole("manager", 3))

	require.Equal(t, "manager", c.Role())
	require.Equal(t, "3", c.Snapshot().RoleID)
	require.True(t, c.HasRole("manager"))
	require.Empty(t, c.Snapshot().Permissions)
	require.Equal(t, int32(0), f.calls.Load(), "no network call at construction")

	empty := rbac.NewCache(f, staticToken(""), token.NewCodec())
	require.Equal(t, "", empty.Role())
	require.False(t, empty.HasRole(""))
}

func TestCache_FetchIsSharedAndMemoised(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{}), role: "manager", permissions: []string{"events:list", "events:create"}}
	c := newCache(t, f, tokentest.WithRole("manager", 3))

	const n = 2
	results := make([]rbac.Snapshot, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := c.FetchMyPermissions(context.Background())
			require.NoError(t, err)
			results[i] = snap
		}(i)
	}
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.gate)
	wg.Wait()

	require.Equal(t, int32(1), f.calls.Load())
	require.Equal(t, results[0], results[1])
	require.Equal(t, []string{"events:create", "events:list"}, results[0].Permissions)
	require.True(t, c.HasPermission("events", "create"))

	_, err := c.FetchMyPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), f.calls.Load(), "memoised")
}

func TestCache_ClearCache(t *testing.T) {
	f := &fakeFetcher{role: "manager", permissions: []string{"events:list"}}
	c := newCache(t, f)

	_, err := c.FetchMyPermissions(context.Background())
	require.NoError(t, err)

	f.set("manager", []string{"events:list", "users:create"}, nil)
	c.ClearCache()
	require.False(t, c.HasPermission("users", "create"), "snapshot untouched until the next fetch")

	snap, err := c.FetchMyPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), f.calls.Load())
	require.True(t, snap.HasPermission("users", "create"))
	require.True(t, c.HasAllPermissions([]rbac.Requirement{{Resource: "events", Action: "list"}, {Resource: "users", Action: "create"}}))
}

func TestCache_FetchFailure(t *testing.T) {
	f := &fakeFetcher{err: errors.New("503")}
	c := newCache(t, f, tokentest.WithRole("manager", 3))

	_, err := c.FetchMyPermissions(context.Background())
	var fetchErr *apperrors.PermissionFetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, "manager", c.Role(), "last known snapshot kept")

	f.set("manager", []string{"events:list"}, nil)
	_, err = c.FetchMyPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), f.calls.Load(), "failure is not memoised")
}

func TestCache_EmptyRoleInResponseKeepsSeed(t *testing.T) {
	f := &fakeFetcher{permissions: []string{"events:list"}}
	c := newCache(t, f, tokentest.WithRole("volunteer", "7"))

	snap, err := c.FetchMyPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, "volunteer", snap.Role)
	require.Equal(t, "7", snap.RoleID)
}

func TestCache_SuperAdmin(t *testing.T) {
	f := &fakeFetcher{}
	c := newCache(t, f, tokentest.WithRole(rbac.DefaultSuperAdminRole, 1))

	require.True(t, c.HasPermission("anything", "at-all"))
	require.True(t, c.HasAllPermissions([]rbac.Requirement{{Resource: "users", Action: "delete"}, {Resource: "branches", Action: "create"}}))
	require.True(t, c.HasAnyPermission([]rbac.Requirement{{Resource: "x", Action: "y"}}))
	require.False(t, c.HasAnyPermission(nil))

	custom := rbac.NewCache(f, staticToken(tokentest.Mint(t, "u", tokentest.WithRole("Root", 1))), token.NewCodec(), rbac.WithSuperAdminRole("Root"))
	require.True(t, custom.HasPermission("events", "delete"))
}

func TestCache_ClearAllAndReseed(t *testing.T) {
	f := &fakeFetcher{role: "manager", permissions: []string{"events:list"}}
	c := newCache(t, f, tokentest.WithRole("manager", 3))
	_, err := c.FetchMyPermissions(context.Background())
	require.NoError(t, err)

	c.ClearAll()
	require.Equal(t, rbac.Snapshot{}, c.Snapshot())
	require.False(t, c.HasPermission("events", "list"))

	_, err = c.FetchMyPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), f.calls.Load())

	c.Reseed()
	require.Equal(t, "manager", c.Role())
	require.Empty(t, c.Snapshot().Permissions)
}

func TestCache_Subscribe(t *testing.T) {
	f := &fakeFetcher{role: "manager", permissions: []string{"events:list"}}
	c := newCache(t, f, tokentest.WithRole("manager", 3))

	ch, cancel := c.Subscribe()
	defer cancel()
	require.Equal(t, "manager", (<-ch).Role)

	_, err := c.FetchMyPermissions(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"events:list"}, (<-ch).Permissions)

	c.ClearAll()
	require.Equal(t, rbac.Snapshot{}, <-ch)
}

func TestCache_Mutate(t *testing.T) {
	t.Run("own role is updated optimistically", func(t *testing.T) {
		f := &fakeFetcher{role: "manager", permissions: []string{"events:list"}}
		c := newCache(t, f, tokentest.WithRole("manager", 3))
		_, err := c.FetchMyPermissions(context.Background())
		require.NoError(t, err)

		err = c.Mutate(context.Background(), "3", "events:create", true, func(ctx context.Context) error {
			require.True(t, c.HasPermission("events", "create"), "visible before commit returns")
			return nil
		})
		require.NoError(t, err)
		require.True(t, c.HasPermission("events", "create"))

		_, err = c.FetchMyPermissions(context.Background())
		require.NoError(t, err)
		require.Equal(t, int32(2), f.calls.Load(), "memo dropped after a mutation")
	})

	t.Run("failed commit is rolled back", func(t *testing.T) {
		f := &fakeFetcher{role: "manager", permissions: []string{"events:list"}}
		c := newCache(t, f, tokentest.WithRole("manager", 3))
		_, err := c.FetchMyPermissions(context.Background())
		require.NoError(t, err)

		boom := errors.New("forbidden")
		err = c.Mutate(context.Background(), "3", "events:list", false, func(ctx context.Context) error {
			require.False(t, c.HasPermission("events", "list"))
			return boom
		})
		require.ErrorIs(t, err, boom)
		require.True(t, c.HasPermission("events", "list"))
	})

	t.Run("another role leaves the snapshot alone", func(t *testing.T) {
		f := &fakeFetcher{}
		c := newCache(t, f, tokentest.WithRole("manager", 3))

		var committed bool
		err := c.Mutate(context.Background(), "9", "events:create", true, func(ctx context.Context) error {
			committed = true
			return nil
		})
		require.NoError(t, err)
		require.True(t, committed)
		require.False(t, c.HasPermission("events", "create"))
	})
}

func TestCache_SubscribersFollowSnapshotOrder(t *testing.T) {
	for i := 0; i < 200; i++ {
		f := &fakeFetcher{gate: make(chan struct{}), role: "manager", permissions: []string{"events:list"}}
		c := newCache(t, f, tokentest.WithRole("manager", 3))

		fetched := make(chan struct{})
		go func() {
			defer close(fetched)
			_, _ = c.FetchMyPermissions(context.Background())
		}()
		require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

		cleared := make(chan struct{})
		go func() {
			defer close(cleared)
			c.ClearAll()
		}()
		close(f.gate)
		<-fetched
		<-cleared

		ch, cancel := c.Subscribe()
		require.Equal(t, c.Snapshot(), <-ch, "latest published value matches the cache")
		cancel()
	}
}
