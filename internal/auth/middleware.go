package auth

import (
	"context"
	"errors"
	"strings"

	"backend-postboard/internal/kvstore"
	"backend-postboard/internal/users"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCheck reports whether a token's session still speaks for username.
type SessionCheck func(ctx context.Context, username, session string) error

// JWTMiddleware validates bearer tokens and stores the username and session
// in locals. A nil check trusts any well-signed token.
func JWTMiddleware(secret string, check SessionCheck) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		parsed, err := parseMiddlewareClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
			return secretBytes, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.Username == "" {
			return fiber.NewError(fiber.StatusUnauthorized, ErrTokenInvalid.Error())
		}

		if check != nil {
			if err := check(c.UserContext(), claims.Username, claims.Session); err != nil {
				return tokenError(err)
			}
		}

		c.Locals("username", claims.Username)
		c.Locals("session", claims.Session)
		return c.Next()
	}
}

var parseMiddlewareClaimsFn = jwt.ParseWithClaims

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// tokenError maps a rejected token to 401. Only a failing store is a 500.
func tokenError(err error) error {
	if errors.Is(err, kvstore.ErrStorage) || kvstore.IsCorrupt(err) {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if errors.Is(err, users.ErrNotFound) {
		err = users.ErrSessionExpired
	}
	return fiber.NewError(fiber.StatusUnauthorized, err.Error())
}
