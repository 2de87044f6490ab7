package comments_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/comments"
	"github.com/user/blog-go/memstore"
	"github.com/user/blog-go/posts"
)

type fixture struct {
	db      *memstore.DB
	manager *comments.Manager
	now     time.Time
	alice   int64
	bob     int64
	postID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memstore.New()

	alice := auth.User{Name: "Alice", Email: "alice@example.com"}
	bob := auth.User{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, db.Users().CreateUser(ctx, &alice))
	require.NoError(t, db.Users().CreateUser(ctx, &bob))

	p := posts.Post{Title: "t", Body: "b", AuthorID: alice.ID, CreatedAt: time.Now()}
	require.NoError(t, db.Posts().Insert(ctx, &p))

	f := &fixture{db: db, now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), alice: alice.ID, bob: bob.ID, postID: p.ID}
	f.manager = comments.NewManager(db.Comments(), func() time.Time { return f.now })
	return f
}

func TestCreateTrimsAndStamps(t *testing.T) {
	f := newFixture(t)
	c, err := f.manager.Create(context.Background(), f.bob, f.postID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Body)
	assert.Equal(t, f.now, c.CreatedAt)
	assert.Equal(t, f.bob, c.AuthorID)
	assert.NotZero(t, c.ID)
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, f.bob, f.postID, "   ")
	assert.True(t, apperror.IsValidationError(err))

	_, err = f.manager.Create(ctx, f.bob, f.postID, strings.Repeat("x", 5001))
	assert.True(t, apperror.IsValidationError(err))

	_, err = f.manager.Create(ctx, f.bob, 999, "hi")
	assert.True(t, apperror.IsNotFound(err))

	assert.Zero(t, f.db.Counts().Comments)
}

func TestListByPostNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.Create(ctx, f.bob, f.postID, "first")
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	second, err := f.manager.Create(ctx, f.alice, f.postID, "second")
	require.NoError(t, err)
	// Same instant as second: the higher id comes first.
	third, err := f.manager.Create(ctx, f.bob, f.postID, "third")
	require.NoError(t, err)

	list, err := f.manager.ListByPost(ctx, f.postID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "Alice", list[1].Author.Name)

	_, err = f.manager.ListByPost(ctx, 999)
	assert.True(t, apperror.IsNotFound(err))
}

func TestListByPostEmptyThread(t *testing.T) {
	f := newFixture(t)
	list, err := f.manager.ListByPost(context.Background(), f.postID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestOnlyAuthorMayEditOrDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.manager.Create(ctx, f.bob, f.postID, "mine")
	require.NoError(t, err)

	_, err = f.manager.Update(ctx, f.alice, c.ID, "hijacked")
	assert.True(t, apperror.IsUnauthorizedError(err))
	deleted, err := f.manager.Delete(ctx, f.alice, c.ID)
	assert.True(t, apperror.IsUnauthorizedError(err))
	assert.False(t, deleted)

	updated, err := f.manager.Update(ctx, f.bob, c.ID, " edited ")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Body)

	got, err := f.manager.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Body)

	_, err = f.manager.Update(ctx, f.bob, c.ID, "")
	assert.True(t, apperror.IsValidationError(err))

	deleted, err = f.manager.Delete(ctx, f.bob, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.manager.Delete(ctx, f.bob, c.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = f.manager.Get(ctx, c.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestCommentsOfDeletedAuthorAreSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.Create(ctx, f.bob, f.postID, "from bob")
	require.NoError(t, err)
	_, err = f.manager.Create(ctx, f.alice, f.postID, "from alice")
	require.NoError(t, err)

	f.db.DeleteUser(f.bob)

	list, err := f.manager.ListByPost(ctx, f.postID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "from alice", list[0].Body)
}
