// Package kvstore is the blob store every repository persists through: a
// string-keyed, string-valued dictionary holding whole JSON snapshots.
package kvstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrStorage marks read/write failures of the underlying store.
	ErrStorage = errors.New("kvstore: storage failure")
	// ErrCorrupt marks a stored value that does not decode.
	ErrCorrupt = errors.New("kvstore: corrupt value")
	// ErrConflict is returned when an optimistic update keeps losing races.
	ErrConflict = errors.New("kvstore: too many concurrent writers")
	// ErrSkipWrite may be returned by an UpdateFunc to leave the key untouched.
	ErrSkipWrite = errors.New("kvstore: skip write")
)

// Store is the storage port. Remove on an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// UpdateFunc receives the current value of a key and returns the value to write.
type UpdateFunc func(current string, found bool) (string, error)

// Updater is implemented by stores with a native atomic read-modify-write.
// fn must not call back into the store.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// StorageError wraps a failure of the underlying store. It matches both
// ErrStorage and the cause under errors.Is.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("kvstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func storageErr(op, key string, err error) error {
	return &StorageError{Op: op, Key: key, Err: err}
}

var defaultLocks = NewKeyLocks()

// Update applies fn to the latest value of key and writes the result back.
// Concurrent updates of the same key never lose a write: stores implementing
// Updater handle that themselves, the rest are serialized per key in-process.
func Update(ctx context.Context, s Store, key string, fn UpdateFunc) error {
	if u, ok := s.(Updater); ok {
		return u.Update(ctx, key, fn)
	}

	unlock := defaultLocks.Lock(key)
	defer unlock()
	return readModifyWrite(ctx, s, key, fn)
}

func readModifyWrite(ctx context.Context, s Store, key string, fn UpdateFunc) error {
	current, found, err := lookup(ctx, s, key)
	if err != nil {
		return err
	}
	next, err := fn(current, found)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Set(ctx, key, next)
}

func lookup(ctx context.Context, s Store, key string) (string, bool, error) {
	value, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
