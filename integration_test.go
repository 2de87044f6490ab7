//go:build integration
// +build integration

package main_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/background"
	"github.com/user/blog-go/comments"
	"github.com/user/blog-go/db"
	"github.com/user/blog-go/posts"
	"github.com/user/blog-go/tags"
)

// setupTestDB starts PostgreSQL, applies the migrations and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("blog"),
		postgres.WithUsername("blog"),
		postgres.WithPassword("blog"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrationsDSN(connStr, "migrations"))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func createUser(t *testing.T, users auth.UserStore, name string) int64 {
	t.Helper()
	u := &auth.User{Name: name, Email: name + "@example.com", HashedPassword: "x"}
	require.NoError(t, users.CreateUser(context.Background(), u))
	return u.ID
}

func TestPostgresBackend(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := auth.NewPgUserStore(pool)
	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	err := users.CreateUser(ctx, &auth.User{Name: "dup", Email: "ALICE@example.com", HashedPassword: "x"})
	assert.True(t, apperror.IsConflictError(err))

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := posts.NewPgStore(pool)
	manager := posts.NewManager(store, posts.WithClock(clock))
	commentManager := comments.NewManager(comments.NewPgStore(pool), clock)

	t.Run("create and update tags", func(t *testing.T) {
		d, err := manager.Create(ctx, alice, posts.CreatePostRequest{Title: "t", Body: "b", Tags: []string{"API", "api", "Test"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"api", "test"}, d.Tags)

		newTags := []string{"test", "new"}
		updated, err := manager.Update(ctx, alice, d.ID, posts.UpdatePostRequest{Tags: &newTags})
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "test"}, updated.Tags)

		_, err = tags.NewPgStore(pool).FindByName(ctx, "API")
		assert.NoError(t, err, "unlinked tags stay in the vocabulary")

		_, err = manager.Update(ctx, bob, d.ID, posts.UpdatePostRequest{Tags: &newTags})
		assert.True(t, apperror.IsUnauthorizedError(err))
	})

	t.Run("delete cascades", func(t *testing.T) {
		d, err := manager.Create(ctx, alice, posts.CreatePostRequest{Title: "t", Body: "b", Tags: []string{"cascade"}})
		require.NoError(t, err)
		_, err = commentManager.Create(ctx, bob, d.ID, "hi")
		require.NoError(t, err)

		deleted, err := manager.DeleteOwned(ctx, alice, d.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = manager.Get(ctx, d.ID)
		assert.True(t, apperror.IsNotFound(err))

		var links, remaining int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM post_tags WHERE post_id = $1`, d.ID).Scan(&links))
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM comments WHERE post_id = $1`, d.ID).Scan(&remaining))
		assert.Zero(t, links)
		assert.Zero(t, remaining)

		byTag, err := manager.ListByTag(ctx, "cascade")
		require.NoError(t, err)
		assert.Empty(t, byTag)
	})

	t.Run("comment on missing post", func(t *testing.T) {
		_, err := commentManager.Create(ctx, bob, 99999, "hi")
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("concurrent tag creation yields one row", func(t *testing.T) {
		tagStore := tags.NewPgStore(pool)
		var wg sync.WaitGroup
		ids := make([]int64, 10)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tg, err := tagStore.GetOrCreate(ctx, "race")
				if assert.NoError(t, err) {
					ids[i] = tg.ID
				}
			}(i)
		}
		wg.Wait()
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})

	t.Run("concurrent reconciles of one post", func(t *testing.T) {
		d, err := manager.Create(ctx, alice, posts.CreatePostRequest{Title: "t", Body: "b", Tags: []string{"start"}})
		require.NoError(t, err)

		sets := [][]string{{"a", "b"}, {"c", "d"}}
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(set []string) {
				defer wg.Done()
				_, err := manager.Reconciler().Reconcile(ctx, d.ID, set)
				assert.NoError(t, err)
			}(sets[i%2])
		}
		wg.Wait()

		got, err := manager.TagsOf(ctx, d.ID)
		require.NoError(t, err)
		assert.Contains(t, sets, got)
	})

	t.Run("sweep with advisory lock", func(t *testing.T) {
		old, err := manager.Create(ctx, bob, posts.CreatePostRequest{Title: "old", Body: "b", Tags: []string{"sweep"}})
		require.NoError(t, err)

		now = now.Add(48 * time.Hour)
		fresh, err := manager.Create(ctx, bob, posts.CreatePostRequest{Title: "fresh", Body: "b", Tags: []string{"sweep"}})
		require.NoError(t, err)

		holder := background.NewPgAdvisoryLocker(pool)
		release, ok, err := holder.TryLock(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		sweeper := background.NewExpirySweeper(manager, 24*time.Hour, time.Hour,
			background.WithLocker(background.NewPgAdvisoryLocker(pool)))

		res, err := sweeper.RunOnce(ctx)
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		_, err = manager.Get(ctx, old.ID)
		require.NoError(t, err)

		require.NoError(t, release(ctx))

		res, err = sweeper.RunOnce(ctx)
		require.NoError(t, err)
		assert.False(t, res.Skipped)
		assert.Contains(t, res.Deleted, old.ID)
		assert.NotContains(t, res.Deleted, fresh.ID)

		_, err = manager.Get(ctx, old.ID)
		assert.True(t, apperror.IsNotFound(err), fmt.Sprintf("post %d should be gone", old.ID))
	})
}
