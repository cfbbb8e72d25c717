package profile

import (
	"context"
	"errors"
	"strings"

	"backend-postboard/internal/kvstore"
)

const keySuffix = "_profile_image"

var ErrValidation = errors.New("image uri required")

// Repository keeps one image reference per username, stored as the raw URI.
type Repository struct {
	store kvstore.Store
}

func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

func key(username string) string {
	return username + keySuffix
}

func (r *Repository) Save(ctx context.Context, username, uri string) error {
	if strings.TrimSpace(uri) == "" {
		return ErrValidation
	}
	return r.store.Set(ctx, key(username), uri)
}

func (r *Repository) Load(ctx context.Context, username string) (string, bool, error) {
	uri, err := r.store.Get(ctx, key(username))
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return uri, true, nil
}

// Move carries the image over to a renamed user. Copy first, then remove.
func (r *Repository) Move(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	uri, ok, err := r.Load(ctx, from)
	if err != nil || !ok {
		return err
	}
	if err := r.store.Set(ctx, key(to), uri); err != nil {
		return err
	}
	return r.store.Remove(ctx, key(from))
}
