package likes

import (
	"log/slog"

	"backend-postboard/internal/stream"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, repo *Repository, events stream.Publisher, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		state, err := repo.Restore(c.UserContext())
		if err != nil {
			slog.WarnContext(c.UserContext(), "likes unreadable", "error", err)
		}
		return c.JSON(state)
	})

	r.Put("/", authMiddleware, func(c *fiber.Ctx) error {
		var state State
		if err := c.BodyParser(&state); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if err := repo.Persist(c.UserContext(), state); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		state = state.normalize()
		events.Publish(stream.TopicLikes, stream.Event{Type: "likes.replaced", Data: state})
		return c.JSON(state)
	})

	r.Post("/:postID/toggle", authMiddleware, func(c *fiber.Ctx) error {
		postID, err := c.ParamsInt("postID")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid post id")
		}
		state, err := repo.ToggleLike(c.UserContext(), postID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		payload := fiber.Map{"postId": postID, "liked": state.Liked(postID), "count": state.Count(postID)}
		events.Publish(stream.TopicLikes, stream.Event{Type: "like.toggled", Data: payload})
		return c.JSON(payload)
	})
}
