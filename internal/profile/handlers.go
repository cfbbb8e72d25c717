package profile

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type imageRequest struct {
	URI string `json:"uri"`
}

func RegisterRoutes(r fiber.Router, repo *Repository, authMiddleware fiber.Handler) {
	r.Get("/:username/image", func(c *fiber.Ctx) error {
		uri, ok, err := repo.Load(c.UserContext(), c.Params("username"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no profile image")
		}
		return c.JSON(imageRequest{URI: uri})
	})

	r.Put("/:username/image", authMiddleware, func(c *fiber.Ctx) error {
		username := c.Params("username")
		if current, _ := c.Locals("username").(string); current != username {
			return fiber.NewError(fiber.StatusForbidden, "cannot change another user's image")
		}
		var req imageRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := repo.Save(c.UserContext(), username, req.URI); err != nil {
			if errors.Is(err, ErrValidation) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(req)
	})
}
