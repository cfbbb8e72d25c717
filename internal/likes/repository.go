package likes

import (
	"context"

	"backend-postboard/internal/kvstore"
)

const storageKey = "@likes"

type Repository struct {
	store kvstore.Store
}

func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Restore reads the blob; an absent key is the empty state.
func (r *Repository) Restore(ctx context.Context) (State, error) {
	var state State
	if _, err := kvstore.GetJSON(ctx, r.store, storageKey, &state); err != nil {
		return NewState(), err
	}
	return state.normalize(), nil
}

// Persist writes the liked set and the counts as one blob.
func (r *Repository) Persist(ctx context.Context, state State) error {
	return kvstore.SetJSON(ctx, r.store, storageKey, state.normalize())
}

// ToggleLike applies Toggle to the latest stored state.
func (r *Repository) ToggleLike(ctx context.Context, postID int) (State, error) {
	return r.apply(ctx, func(s State) State { return Toggle(s, postID) })
}

// Forget drops a deleted post from the blob.
func (r *Repository) Forget(ctx context.Context, postID int) error {
	_, err := r.apply(ctx, func(s State) State { return Forget(s, postID) })
	return err
}

func (r *Repository) apply(ctx context.Context, fn func(State) State) (State, error) {
	var next State
	err := kvstore.UpdateJSON(ctx, r.store, storageKey, func(current State, _ bool) (State, error) {
		next = fn(current)
		return next, nil
	})
	if err != nil {
		return NewState(), err
	}
	return next, nil
}
