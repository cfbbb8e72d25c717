package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// GetJSON decodes the value at key into v. found is false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, found, err := lookup(ctx, s, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// SetJSON overwrites key with the JSON encoding of v.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}

// UpdateJSON is Update over a JSON encoded value of type T. A corrupt stored
// value aborts the update rather than being overwritten.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(current T, found bool) (T, error)) error {
	return Update(ctx, s, key, func(raw string, found bool) (string, error) {
		var current T
		if found {
			if err := json.Unmarshal([]byte(raw), &current); err != nil {
				return "", fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
			}
		}
		next, err := fn(current, found)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("kvstore: encode %s: %w", key, err)
		}
		return string(encoded), nil
	})
}

// IsCorrupt reports whether err came from an undecodable stored value.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
