// Package storetest is a conformance suite run by every store.Store backend.
package storetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cntfs/pkg/store"
)

// StoreFactory creates a fresh, empty store for each test. Factories should
// register teardown with t.Cleanup.
type StoreFactory func(t *testing.T) store.Store

// RunConformanceSuite runs the credential and ownership tests against the
// store produced by factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("Credentials", func(t *testing.T) {
		runCredentialTests(t, factory)
	})

	t.Run("Ownership", func(t *testing.T) {
		runOwnershipTests(t, factory)
	})

	t.Run("Healthcheck", func(t *testing.T) {
		s := factory(t)
		assert.NoError(t, s.Healthcheck(t.Context()))
	})
}

func runCredentialTests(t *testing.T, factory StoreFactory) {
	t.Run("get unknown user", func(t *testing.T) {
		s := factory(t)
		_, err := s.GetCredentials(t.Context(), "nobody")
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		require.NoError(t, s.PutCredentials(ctx, &store.Credentials{Username: "alice", Verifier: "v1", CreatedAt: created}))

		got, err := s.GetCredentials(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "v1", got.Verifier)
		assert.True(t, created.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, created)
	})

	t.Run("put fills created_at", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.PutCredentials(t.Context(), &store.Credentials{Username: "alice", Verifier: "v"}))

		got, err := s.GetCredentials(t.Context(), "alice")
		require.NoError(t, err)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("duplicate put", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.PutCredentials(ctx, &store.Credentials{Username: "alice", Verifier: "v1"}))

		err := s.PutCredentials(ctx, &store.Credentials{Username: "alice", Verifier: "v2"})
		assert.ErrorIs(t, err, store.ErrDuplicateUser)

		got, err := s.GetCredentials(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "v1", got.Verifier)
	})

	t.Run("concurrent put registers once", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.PutCredentials(ctx, &store.Credentials{Username: "carol", Verifier: fmt.Sprintf("v%d", i)})
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("list sorted", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()

		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)

		for _, name := range []string{"carol", "alice", "bob"} {
			require.NoError(t, s.PutCredentials(ctx, &store.Credentials{Username: name, Verifier: "v"}))
		}
		users, err = s.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 3)
		assert.Equal(t, "alice", users[0].Username)
		assert.Equal(t, "bob", users[1].Username)
		assert.Equal(t, "carol", users[2].Username)
	})

	t.Run("delete", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.PutCredentials(ctx, &store.Credentials{Username: "alice", Verifier: "v"}))

		require.NoError(t, s.DeleteUser(ctx, "alice"))
		_, err := s.GetCredentials(ctx, "alice")
		assert.ErrorIs(t, err, store.ErrUserNotFound)
		assert.ErrorIs(t, s.DeleteUser(ctx, "alice"), store.ErrUserNotFound)

		// A deleted name can be registered again.
		assert.NoError(t, s.PutCredentials(ctx, &store.Credentials{Username: "alice", Verifier: "v2"}))
	})
}

func runOwnershipTests(t *testing.T, factory StoreFactory) {
	t.Run("owner of unknown path", func(t *testing.T) {
		s := factory(t)
		_, err := s.Owner(t.Context(), "a.txt")
		assert.ErrorIs(t, err, store.ErrOwnerNotFound)

		ok, err := s.IsOwner(t.Context(), "a.txt", "alice")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set and check", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.SetOwner(ctx, "docs/report.txt", "alice"))

		owner, err := s.Owner(ctx, "docs/report.txt")
		require.NoError(t, err)
		assert.Equal(t, "alice", owner)

		ok, err := s.IsOwner(ctx, "docs/report.txt", "alice")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.IsOwner(ctx, "docs/report.txt", "bob")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set replaces", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.SetOwner(ctx, "a.txt", "alice"))
		require.NoError(t, s.SetOwner(ctx, "a.txt", "bob"))

		owner, err := s.Owner(ctx, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, "bob", owner)
	})

	t.Run("remove", func(t *testing.T) {
		s := factory(t)
		ctx := t.Context()
		require.NoError(t, s.SetOwner(ctx, "a.txt", "alice"))
		require.NoError(t, s.SetOwner(ctx, "b.txt", "alice"))

		require.NoError(t, s.RemoveOwner(ctx, "a.txt"))
		_, err := s.Owner(ctx, "a.txt")
		assert.ErrorIs(t, err, store.ErrOwnerNotFound)

		owner, err := s.Owner(ctx, "b.txt")
		require.NoError(t, err)
		assert.Equal(t, "alice", owner)

		assert.NoError(t, s.RemoveOwner(ctx, "never-set.txt"))
	})
}
