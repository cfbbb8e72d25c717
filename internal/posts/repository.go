package posts

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"backend-postboard/internal/kvstore"

	"golang.org/x/sync/singleflight"
)

const (
	postsKey = "@posts"
	seqKey   = "@posts_seq"

	maxIDAttempts = 3
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrValidation   = errors.New("title and body required")

	errIDTaken = errors.New("post id already taken")
)

// DeleteHook runs after a post has been removed from the snapshot.
type DeleteHook func(ctx context.Context, postID int) error

type Repository struct {
	store    kvstore.Store
	remote   RemoteSource
	flight   singleflight.Group
	onDelete []DeleteHook
}

func NewRepository(store kvstore.Store, remote RemoteSource) *Repository {
	return &Repository{store: store, remote: remote}
}

// OnDelete registers a cleanup hook for deleted posts. Not safe to call while
// the repository is serving requests.
func (r *Repository) OnDelete(hook DeleteHook) {
	r.onDelete = append(r.onDelete, hook)
}

// LoadInitial returns the local snapshot, or when it is empty the remote list,
// which is then persisted. It never fails: every error degrades to an empty
// list and is logged.
func (r *Repository) LoadInitial(ctx context.Context) []Post {
	posts, err := r.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "local posts unreadable, using remote", "error", err)
	}
	if len(posts) > 0 || r.remote == nil {
		return posts
	}

	// concurrent first loads share a single remote fetch
	v, _, _ := r.flight.Do("initial", func() (any, error) {
		return r.fetchAndStore(context.WithoutCancel(ctx)), nil
	})
	return clonePosts(v.([]Post))
}

func (r *Repository) fetchAndStore(ctx context.Context) []Post {
	fetched, err := r.remote.FetchPosts(ctx)
	if err != nil {
		slog.WarnContext(ctx, "remote posts unavailable", "error", err)
		return []Post{}
	}
	if fetched == nil {
		fetched = []Post{}
	}

	result := fetched
	err = kvstore.UpdateJSON(ctx, r.store, postsKey, func(current []Post, _ bool) ([]Post, error) {
		if len(current) > 0 {
			// someone wrote posts while we were fetching
			result = current
			return nil, kvstore.ErrSkipWrite
		}
		result = fetched
		return fetched, nil
	})
	if kvstore.IsCorrupt(err) {
		err = r.SaveAll(ctx, fetched)
	}
	if err != nil {
		slog.WarnContext(ctx, "persist fetched posts failed", "count", len(fetched), "error", err)
	}
	return result
}

// Load returns the local snapshot; an absent key is an empty list.
func (r *Repository) Load(ctx context.Context) ([]Post, error) {
	var posts []Post
	if _, err := kvstore.GetJSON(ctx, r.store, postsKey, &posts); err != nil {
		return []Post{}, err
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

// SaveAll overwrites the snapshot.
func (r *Repository) SaveAll(ctx context.Context, posts []Post) error {
	if posts == nil {
		posts = []Post{}
	}
	return kvstore.SetJSON(ctx, r.store, postsKey, posts)
}

func (r *Repository) Get(ctx context.Context, id int) (Post, error) {
	posts, err := r.Load(ctx)
	if err != nil {
		return Post{}, err
	}
	if i := indexOf(posts, id); i >= 0 {
		return posts[i], nil
	}
	return Post{}, ErrPostNotFound
}

// Append assigns the post a fresh id and stores it in front of the list.
func (r *Repository) Append(ctx context.Context, p Post) (Post, []Post, error) {
	if err := validate(p); err != nil {
		return Post{}, nil, err
	}

	var updated []Post
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := r.nextID(ctx)
		if err != nil {
			return Post{}, nil, err
		}
		p.ID = id

		err = kvstore.UpdateJSON(ctx, r.store, postsKey, func(current []Post, _ bool) ([]Post, error) {
			if indexOf(current, p.ID) >= 0 {
				return nil, errIDTaken
			}
			updated = append([]Post{p}, current...)
			return updated, nil
		})
		if errors.Is(err, errIDTaken) {
			continue
		}
		if err != nil {
			return Post{}, nil, err
		}
		return p, updated, nil
	}
	return Post{}, nil, errIDTaken
}

// Update replaces the title and body of the post with the same id.
func (r *Repository) Update(ctx context.Context, edited Post) ([]Post, error) {
	if err := validate(edited); err != nil {
		return nil, err
	}

	var updated []Post
	err := kvstore.UpdateJSON(ctx, r.store, postsKey, func(current []Post, _ bool) ([]Post, error) {
		i := indexOf(current, edited.ID)
		if i < 0 {
			return nil, ErrPostNotFound
		}
		updated = clonePosts(current)
		updated[i].Title = edited.Title
		updated[i].Body = edited.Body
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the post and then runs the delete hooks. Hook failures are
// logged only.
func (r *Repository) Delete(ctx context.Context, id int) ([]Post, error) {
	var updated []Post
	err := kvstore.UpdateJSON(ctx, r.store, postsKey, func(current []Post, _ bool) ([]Post, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, ErrPostNotFound
		}
		updated = make([]Post, 0, len(current)-1)
		updated = append(updated, current[:i]...)
		updated = append(updated, current[i+1:]...)
		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	for _, hook := range r.onDelete {
		if err := hook(ctx, id); err != nil {
			slog.WarnContext(ctx, "post delete cleanup failed", "post_id", id, "error", err)
		}
	}
	return updated, nil
}

// nextID advances the persisted counter past every id currently stored.
func (r *Repository) nextID(ctx context.Context) (int, error) {
	posts, err := r.Load(ctx)
	if err != nil && !kvstore.IsCorrupt(err) {
		return 0, err
	}
	highest := 0
	for _, p := range posts {
		if p.ID > highest {
			highest = p.ID
		}
	}

	var id int
	err = kvstore.Update(ctx, r.store, seqKey, func(current string, found bool) (string, error) {
		last := 0
		if found {
			// an unreadable counter is reseeded from the stored ids
			last, _ = strconv.Atoi(current)
		}
		id = max(last, highest) + 1
		return strconv.Itoa(id), nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func validate(p Post) error {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Body) == "" {
		return ErrValidation
	}
	return nil
}

func indexOf(posts []Post, id int) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func clonePosts(posts []Post) []Post {
	out := make([]Post, len(posts))
	copy(out, posts)
	return out
}
