package users

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"backend-postboard/internal/kvstore"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	reservedPrefix = "@"
	reservedSuffix = "_profile_image"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrAlreadyExists      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("username and password required")
	ErrSessionExpired     = errors.New("session no longer valid")
)

var (
	hashPasswordFn = bcrypt.GenerateFromPassword
	newSessionFn   = uuid.NewString
)

type Repository struct {
	store kvstore.Store
}

func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Register creates the credential record. It fails with ErrAlreadyExists
// when the key is present, even if that record is unreadable.
func (r *Repository) Register(ctx context.Context, username, password string) (Credential, error) {
	if err := validate(username, password); err != nil {
		return Credential{}, err
	}
	hash, err := hashPasswordFn([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Credential{}, fmt.Errorf("hash password: %w", err)
	}
	cred := Credential{Username: username, Password: string(hash), Session: newSessionFn()}
	if err := r.create(ctx, cred); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

func (r *Repository) Exists(ctx context.Context, username string) (bool, error) {
	_, err := r.store.Get(ctx, username)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) Get(ctx context.Context, username string) (Credential, error) {
	if strings.TrimSpace(username) == "" || reserved(username) {
		return Credential{}, ErrNotFound
	}
	var cred Credential
	found, err := kvstore.GetJSON(ctx, r.store, username, &cred)
	if err != nil {
		return Credential{}, err
	}
	if !found {
		return Credential{}, ErrNotFound
	}
	if cred.Username == "" {
		cred.Username = username
	}
	return cred, nil
}

func (r *Repository) Authenticate(ctx context.Context, username, password string) (Credential, error) {
	cred, err := r.Get(ctx, username)
	if err != nil {
		return Credential{}, err
	}
	if !passwordMatches(cred.Password, password) {
		return Credential{}, ErrInvalidCredentials
	}
	return cred, nil
}

// UpdateProfile sets a new password and, when the name changes, moves the
// record. session must match the stored one. The old record is claimed with a
// fresh session first, so only one of several concurrent renames proceeds and
// every token issued before it stops working. The new key is written before
// the old one is removed, so a failure in between leaves two records rather
// than none.
func (r *Repository) UpdateProfile(ctx context.Context, oldUsername, session, newUsername, newPassword string) (Credential, error) {
	if err := validate(newUsername, newPassword); err != nil {
		return Credential{}, err
	}
	if strings.TrimSpace(oldUsername) == "" || reserved(oldUsername) {
		return Credential{}, ErrNotFound
	}
	hash, err := hashPasswordFn([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return Credential{}, fmt.Errorf("hash password: %w", err)
	}
	cred := Credential{Username: newUsername, Password: string(hash), Session: newSessionFn()}

	if newUsername == oldUsername {
		err := r.swapSession(ctx, oldUsername, session, func(Credential) Credential { return cred })
		if err != nil {
			return Credential{}, err
		}
		return cred, nil
	}

	err = r.swapSession(ctx, oldUsername, session, func(stored Credential) Credential {
		stored.Session = cred.Session
		return stored
	})
	if err != nil {
		return Credential{}, err
	}
	if err := r.create(ctx, cred); err != nil {
		// hand the old record back to the caller's token
		if rerr := r.swapSession(ctx, oldUsername, cred.Session, func(stored Credential) Credential {
			stored.Session = session
			return stored
		}); rerr != nil {
			slog.WarnContext(ctx, "rename rollback failed", "user", oldUsername, "error", rerr)
		}
		return Credential{}, err
	}
	if err := r.store.Remove(ctx, oldUsername); err != nil {
		slog.WarnContext(ctx, "old credential left behind after rename", "from", oldUsername, "to", newUsername, "error", err)
		return Credential{}, fmt.Errorf("remove old credential: %w", err)
	}
	return cred, nil
}

// CheckSession reports whether a token issued with session still speaks for
// username.
func (r *Repository) CheckSession(ctx context.Context, username, session string) error {
	cred, err := r.Get(ctx, username)
	if err != nil {
		return err
	}
	if !sameSession(cred.Session, session) {
		return ErrSessionExpired
	}
	return nil
}

// swapSession rewrites the record at username atomically, provided it still
// carries session.
func (r *Repository) swapSession(ctx context.Context, username, session string, fn func(Credential) Credential) error {
	return kvstore.UpdateJSON(ctx, r.store, username, func(stored Credential, found bool) (Credential, error) {
		if !found {
			return Credential{}, ErrNotFound
		}
		if !sameSession(stored.Session, session) {
			return Credential{}, ErrSessionExpired
		}
		if stored.Username == "" {
			stored.Username = username
		}
		return fn(stored), nil
	})
}

func (r *Repository) create(ctx context.Context, cred Credential) error {
	return kvstore.Update(ctx, r.store, cred.Username, func(_ string, found bool) (string, error) {
		if found {
			return "", ErrAlreadyExists
		}
		raw, err := json.Marshal(cred)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	})
}

func validate(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrValidation
	}
	if reserved(username) {
		return fmt.Errorf("%w: username %q is reserved", ErrValidation, username)
	}
	return nil
}

// reserved names collide with other records in the shared key space.
func reserved(username string) bool {
	return strings.HasPrefix(username, reservedPrefix) || strings.HasSuffix(username, reservedSuffix)
}

func passwordMatches(stored, given string) bool {
	if _, err := bcrypt.Cost([]byte(stored)); err == nil {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func sameSession(stored, given string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
