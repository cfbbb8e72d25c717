package posts

import (
	"errors"

	"backend-postboard/internal/stream"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, repo *Repository, events stream.Publisher, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(repo.LoadInitial(c.UserContext()))
	})

	r.Put("/", authMiddleware, func(c *fiber.Ctx) error {
		var posts []Post
		if err := c.BodyParser(&posts); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "array of posts required")
		}
		if err := repo.SaveAll(c.UserContext(), posts); err != nil {
			return httpError(err)
		}
		events.Publish(stream.TopicPosts, stream.Event{Type: "posts.replaced", Data: fiber.Map{"count": len(posts)}})
		return c.JSON(fiber.Map{"count": len(posts)})
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req postInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		post, _, err := repo.Append(c.UserContext(), Post{Title: req.Title, Body: req.Body})
		if err != nil {
			return httpError(err)
		}
		events.Publish(stream.TopicPosts, stream.Event{Type: "post.created", Data: post})
		return c.Status(fiber.StatusCreated).JSON(post)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid post id")
		}
		post, err := repo.Get(c.UserContext(), id)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(post)
	})

	r.Put("/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid post id")
		}
		var req postInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		updated, err := repo.Update(c.UserContext(), Post{ID: id, Title: req.Title, Body: req.Body})
		if err != nil {
			return httpError(err)
		}
		post := updated[indexOf(updated, id)]
		events.Publish(stream.TopicPosts, stream.Event{Type: "post.updated", Data: post})
		return c.JSON(post)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid post id")
		}
		if _, err := repo.Delete(c.UserContext(), id); err != nil {
			return httpError(err)
		}
		events.Publish(stream.TopicPosts, stream.Event{Type: "post.deleted", Data: fiber.Map{"id": id}})
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPostNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
