package comments

import (
	"errors"
	"log/slog"

	"backend-postboard/internal/stream"

	"github.com/gofiber/fiber/v2"
)

type commentInput struct {
	Text string `json:"text"`
}

// RegisterRoutes expects r to carry an :id parameter naming the post.
func RegisterRoutes(r fiber.Router, repo *Repository, events stream.Publisher, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		postID, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid post id")
		}
		comments, err := repo.Load(c.UserContext(), postID)
		if err != nil {
			slog.WarnContext(c.UserContext(), "comments unreadable", "post_id", postID, "error", err)
		}
		return c.JSON(comments)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		postID, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid post id")
		}
		var req commentInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		comment, _, err := repo.Append(c.UserContext(), postID, req.Text)
		if err != nil {
			return httpError(err)
		}
		events.Publish(stream.PostTopic(postID), stream.Event{Type: "comment.created", Data: comment})
		return c.Status(fiber.StatusCreated).JSON(comment)
	})

	r.Put("/:commentID", authMiddleware, func(c *fiber.Ctx) error {
		postID, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid post id")
		}
		var req commentInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		edited := Comment{ID: c.Params("commentID"), Text: req.Text}
		if _, err := repo.Update(c.UserContext(), postID, edited); err != nil {
			return httpError(err)
		}
		events.Publish(stream.PostTopic(postID), stream.Event{Type: "comment.updated", Data: edited})
		return c.JSON(edited)
	})

	r.Delete("/:commentID", authMiddleware, func(c *fiber.Ctx) error {
		postID, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid post id")
		}
		commentID := c.Params("commentID")
		if _, err := repo.Delete(c.UserContext(), postID, commentID); err != nil {
			return httpError(err)
		}
		events.Publish(stream.PostTopic(postID), stream.Event{Type: "comment.deleted", Data: fiber.Map{"id": commentID}})
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrCommentNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
