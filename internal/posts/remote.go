package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-postboard/internal/observability"

	"github.com/gofiber/fiber/v2"
)

var ErrRemoteFetch = errors.New("remote posts fetch failed")

// RemoteSource is the read-only list used to populate an empty local store.
type RemoteSource interface {
	FetchPosts(ctx context.Context) ([]Post, error)
}

// HTTPSource fetches a JSON array of posts with one GET.
type HTTPSource struct {
	url     string
	timeout time.Duration
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{url: url, timeout: timeout}
}

func (s *HTTPSource) FetchPosts(ctx context.Context) ([]Post, error) {
	posts, err := s.fetch(ctx)
	if err != nil {
		observability.RemoteFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.RemoteFetches.WithLabelValues("ok").Inc()
	return posts, nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}

	agent := fiber.Get(s.url)
	if s.timeout > 0 {
		agent.Timeout(s.timeout)
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRemoteFetch, code)
	}

	var posts []Post
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrRemoteFetch, err)
	}
	return posts, nil
}
