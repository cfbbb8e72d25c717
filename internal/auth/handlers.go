package auth

import (
	"errors"

	"backend-postboard/internal/users"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		tokens, err := svc.Register(c.UserContext(), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(tokens)
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "username and password required")
		}
		tokens, err := svc.Login(c.UserContext(), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(tokens)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		username, err := svc.ValidateAccessToken(c.UserContext(), token)
		if err != nil {
			return tokenError(err)
		}
		return c.JSON(fiber.Map{"username": username})
	})

	r.Put("/profile", authMiddleware, func(c *fiber.Ctx) error {
		var req ProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		current, _ := c.Locals("username").(string)
		session, _ := c.Locals("session").(string)
		tokens, err := svc.UpdateProfile(c.UserContext(), current, session, req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(tokens)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, users.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrAlreadyExists):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, users.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials), errors.Is(err, users.ErrSessionExpired):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
