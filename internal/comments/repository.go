package comments

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"backend-postboard/internal/kvstore"
)

const keyPrefix = "@comments_"

var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrValidation      = errors.New("comment text required")
)

type Repository struct {
	store kvstore.Store
	now   func() time.Time
}

func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

func storageKey(postID int) string {
	return keyPrefix + strconv.Itoa(postID)
}

// Load returns the comments of one post, newest first.
func (r *Repository) Load(ctx context.Context, postID int) ([]Comment, error) {
	var comments []Comment
	if _, err := kvstore.GetJSON(ctx, r.store, storageKey(postID), &comments); err != nil {
		return []Comment{}, err
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

func (r *Repository) SaveAll(ctx context.Context, postID int, comments []Comment) error {
	if comments == nil {
		comments = []Comment{}
	}
	return kvstore.SetJSON(ctx, r.store, storageKey(postID), comments)
}

// Append prepends a comment whose id is its creation time in milliseconds,
// bumped forward until unique within the post.
func (r *Repository) Append(ctx context.Context, postID int, text string) (Comment, []Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, nil, ErrValidation
	}

	var (
		created Comment
		updated []Comment
	)
	err := kvstore.UpdateJSON(ctx, r.store, storageKey(postID), func(current []Comment, _ bool) ([]Comment, error) {
		created = Comment{ID: uniqueID(current, r.now().UnixMilli()), Text: text}
		updated = append([]Comment{created}, current...)
		return updated, nil
	})
	if err != nil {
		return Comment{}, nil, err
	}
	return created, updated, nil
}

// Update replaces the text of the comment with the same id.
func (r *Repository) Update(ctx context.Context, postID int, edited Comment) ([]Comment, error) {
	if strings.TrimSpace(edited.Text) == "" {
		return nil, ErrValidation
	}

	var updated []Comment
	err := kvstore.UpdateJSON(ctx, r.store, storageKey(postID), func(current []Comment, _ bool) ([]Comment, error) {
		i := indexOf(current, edited.ID)
		if i < 0 {
			return nil, ErrCommentNotFound
		}
		updated = make([]Comment, len(current))
		copy(updated, current)
		updated[i].Text = edited.Text
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, postID int, commentID string) ([]Comment, error) {
	var updated []Comment
	err := kvstore.UpdateJSON(ctx, r.store, storageKey(postID), func(current []Comment, _ bool) ([]Comment, error) {
		i := indexOf(current, commentID)
		if i < 0 {
			return nil, ErrCommentNotFound
		}
		updated = make([]Comment, 0, len(current)-1)
		updated = append(updated, current[:i]...)
		updated = append(updated, current[i+1:]...)
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Purge drops every comment of a deleted post.
func (r *Repository) Purge(ctx context.Context, postID int) error {
	return r.store.Remove(ctx, storageKey(postID))
}

func uniqueID(existing []Comment, millis int64) string {
	taken := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		taken[c.ID] = struct{}{}
	}
	for {
		id := strconv.FormatInt(millis, 10)
		if _, ok := taken[id]; !ok {
			return id
		}
		millis++
	}
}

func indexOf(comments []Comment, id string) int {
	for i, c := range comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}
