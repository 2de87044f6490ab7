package posts

import (
	"context"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/tags"
)

// Reconciler makes a post's tag links match a desired set with the smallest number of
// link inserts and deletes. Running it twice with the same input changes nothing the
// second time.
type Reconciler struct {
	store Store
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile links postID to exactly the canonical form of desired and returns the
// resulting sorted tag names. An input that normalizes to nothing leaves the links as
// they are.
func (r *Reconciler) Reconcile(ctx context.Context, postID int64, desired []string) ([]string, error) {
	res, err := r.ReconcileDetailed(ctx, postID, desired)
	if err != nil {
		return nil, err
	}
	return res.Tags, nil
}

// ReconcileDetailed is Reconcile that also reports which names were added and removed.
func (r *Reconciler) ReconcileDetailed(ctx context.Context, postID int64, desired []string) (ReconcileResult, error) {
	var res ReconcileResult
	err := r.store.InTx(ctx, func(tx Store) error {
		var err error
		res, err = r.apply(ctx, tx, postID, desired)
		return err
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return res, nil
}

// apply runs inside the caller's transaction. The post row is locked before the current
// links are read, so two reconciles of one post cannot interleave their read and write.
func (r *Reconciler) apply(ctx context.Context, s Store, postID int64, names []string) (ReconcileResult, error) {
	desired := tags.Normalize(names)

	if err := s.LockForUpdate(ctx, postID); err != nil {
		return ReconcileResult{}, err
	}
	current, err := s.TagNames(ctx, postID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if len(desired) == 0 {
		return ReconcileResult{Tags: current, Added: []string{}, Removed: []string{}}, nil
	}

	toAdd, toRemove := tags.Diff(current, desired)
	tagStore := s.Tags()

	for _, name := range toAdd {
		t, err := tagStore.GetOrCreate(ctx, name)
		if err != nil {
			return ReconcileResult{}, err
		}
		if err := s.LinkTag(ctx, postID, t.ID); err != nil {
			return ReconcileResult{}, err
		}
	}
	for _, name := range toRemove {
		t, err := tagStore.FindByName(ctx, name)
		if err != nil {
			if apperror.IsNotFound(err) {
				continue
			}
			return ReconcileResult{}, err
		}
		if err := s.UnlinkTag(ctx, postID, t.ID); err != nil {
			return ReconcileResult{}, err
		}
	}

	final, err := s.TagNames(ctx, postID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if toAdd == nil {
		toAdd = []string{}
	}
	if toRemove == nil {
		toRemove = []string{}
	}
	return ReconcileResult{Tags: final, Added: toAdd, Removed: toRemove}, nil
}
