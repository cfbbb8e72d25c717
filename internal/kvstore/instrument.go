package kvstore

import (
	"context"
	"errors"
	"log/slog"

	"backend-postboard/internal/observability"
)

type instrumented struct {
	inner   Store
	backend string
}

type instrumentedUpdater struct {
	instrumented
	updater Updater
}

// Instrument wraps s so every call is counted and failures are logged. The
// result implements Updater exactly when s does.
func Instrument(s Store, backend string) Store {
	base := instrumented{inner: s, backend: backend}
	if u, ok := s.(Updater); ok {
		return &instrumentedUpdater{instrumented: base, updater: u}
	}
	return &base
}

func (s *instrumented) Get(ctx context.Context, key string) (string, error) {
	value, err := s.inner.Get(ctx, key)
	s.record(ctx, "get", key, err)
	return value, err
}

func (s *instrumented) Set(ctx context.Context, key, value string) error {
	err := s.inner.Set(ctx, key, value)
	s.record(ctx, "set", key, err)
	return err
}

func (s *instrumented) Remove(ctx context.Context, key string) error {
	err := s.inner.Remove(ctx, key)
	s.record(ctx, "remove", key, err)
	return err
}

func (s *instrumentedUpdater) Update(ctx context.Context, key string, fn UpdateFunc) error {
	err := s.updater.Update(ctx, key, fn)
	s.record(ctx, "update", key, err)
	return err
}

func (s *instrumented) record(ctx context.Context, op, key string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "miss"
	case errors.Is(err, ErrStorage):
		result = "error"
		slog.WarnContext(ctx, "store operation failed", "backend", s.backend, "op", op, "key", key, "error", err)
	default:
		// rejected by the caller's UpdateFunc
		result = "rejected"
	}
	observability.StoreOperations.WithLabelValues(s.backend, op, result).Inc()
}
