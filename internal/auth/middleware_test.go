package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-postboard/internal/kvstore"
	"backend-postboard/internal/users"

	"github.com/gofiber/fiber/v2"
)

func TestJWTMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/private", JWTMiddleware("secret", nil), func(c *fiber.Ctx) error {
		if c.Locals("username") != "alice" {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		return c.SendStatus(http.StatusOK)
	})

	svc := NewService("secret", time.Hour, nil, nil)

	// missing token
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}

	// wrong scheme
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Basic abc")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for basic auth")
	}

	// valid token
	token, _ := svc.signToken("alice", "s1", time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok")
	}

	// expired token
	expired, _ := svc.signToken("alice", "s1", -time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for expired token")
	}
}

func TestBearerFromHeader(t *testing.T) {
	if bearerFromHeader("bad") != "" {
		t.Fatalf("expected empty token")
	}
	if bearerFromHeader("bearer token") != "token" {
		t.Fatalf("expected token")
	}
}

func TestJWTMiddlewareChecksSession(t *testing.T) {
	errStore := fmt.Errorf("read: %w", kvstore.ErrStorage)
	cases := []struct {
		checkErr error
		want     int
	}{
		{nil, http.StatusOK},
		{users.ErrSessionExpired, http.StatusUnauthorized},
		{users.ErrNotFound, http.StatusUnauthorized},
		{errStore, http.StatusInternalServerError},
	}

	svc := NewService("secret", time.Hour, nil, nil)
	token, _ := svc.signToken("alice", "s1", time.Minute)
	for _, c := range cases {
		var gotUser, gotSession string
		app := fiber.New()
		check := func(_ context.Context, username, session string) error {
			gotUser, gotSession = username, session
			return c.checkErr
		}
		app.Get("/private", JWTMiddleware("secret", check), func(c *fiber.Ctx) error {
			return c.SendStatus(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, _ := app.Test(req)
		if resp.StatusCode != c.want {
			t.Fatalf("check error %v: expected %d, got %d", c.checkErr, c.want, resp.StatusCode)
		}
		if gotUser != "alice" || gotSession != "s1" {
			t.Fatalf("check saw %q/%q", gotUser, gotSession)
		}
	}
}
