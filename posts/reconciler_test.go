package posts_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/apperror"
)

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, "seed")
	r := f.manager.Reconciler()

	first, err := r.ReconcileDetailed(ctx, d.ID, []string{"a", "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, first.Tags)
	assert.Equal(t, []string{"a", "b"}, first.Added)
	assert.Equal(t, []string{"seed"}, first.Removed)

	second, err := r.ReconcileDetailed(ctx, d.ID, []string{"b", " A "})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, second.Tags)
	assert.False(t, second.Changed())
	assert.Equal(t, 2, f.db.Counts().PostTags)
}

func TestReconcileMinimalDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, "a", "b")

	res, err := f.manager.Reconciler().ReconcileDetailed(ctx, d.ID, []string{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, res.Tags)
	assert.Equal(t, []string{"c"}, res.Added)
	assert.Equal(t, []string{"a"}, res.Removed)
}

func TestReconcileEmptyInputIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, "keep")

	got, err := f.manager.Reconciler().Reconcile(ctx, d.ID, []string{"", "  "})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, got)
}

func TestReconcileReusesExistingTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	one := f.create(t, "Go")
	two := f.create(t, "db")

	_, err := f.manager.Reconciler().Reconcile(ctx, two.ID, []string{"GO"})
	require.NoError(t, err)

	goTag, err := f.db.Tags().FindByName(ctx, "go")
	require.NoError(t, err)
	all, err := f.db.Tags().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	names, err := f.manager.TagsOf(ctx, one.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{goTag.Name}, names)
}

func TestReconcileMissingPost(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Reconciler().Reconcile(context.Background(), 404, []string{"x"})
	assert.True(t, apperror.IsNotFound(err))
	assert.Zero(t, f.db.Counts().Tags)
}

func TestConcurrentReconcilesEndInOneOfTheRequestedSets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, "start")
	r := f.manager.Reconciler()

	sets := [][]string{{"a", "b"}, {"c", "d"}, {"a", "d"}}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(set []string) {
			defer wg.Done()
			_, err := r.Reconcile(ctx, d.ID, set)
			assert.NoError(t, err)
		}(sets[i%len(sets)])
	}
	wg.Wait()

	got, err := f.manager.TagsOf(ctx, d.ID)
	require.NoError(t, err)
	assert.Contains(t, sets, got)
}
