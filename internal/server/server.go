package server

import (
	"errors"
	"log/slog"

	"backend-postboard/internal/auth"
	"backend-postboard/internal/comments"
	"backend-postboard/internal/config"
	"backend-postboard/internal/kvstore"
	"backend-postboard/internal/likes"
	"backend-postboard/internal/posts"
	"backend-postboard/internal/profile"
	"backend-postboard/internal/stream"
	"backend-postboard/internal/users"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Store  kvstore.Store
	Redis  *redis.Client
	Stream *stream.Hub
}

// NewServer wires every feature onto one fiber app. A nil store falls back to
// process memory.
func NewServer(cfg config.Config, store kvstore.Store, redisClient *redis.Client) *Server {
	if store == nil {
		store = kvstore.NewMemoryStore()
	}

	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		Store:  store,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

// Close stops the event hub. The fiber app is shut down by the caller.
func (s *Server) Close() error {
	return s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	var remote posts.RemoteSource
	if s.Cfg.RemotePostsURL != "" {
		remote = posts.NewHTTPSource(s.Cfg.RemotePostsURL, s.Cfg.RemoteTimeout)
	}
	postRepo := posts.NewRepository(s.Store, remote)
	commentRepo := comments.NewRepository(s.Store)
	likeRepo := likes.NewRepository(s.Store)
	userRepo := users.NewRepository(s.Store)
	imageRepo := profile.NewRepository(s.Store)

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret, userRepo.CheckSession)

	postRepo.OnDelete(commentRepo.Purge)
	postRepo.OnDelete(likeRepo.Forget)

	comments.RegisterRoutes(s.App.Group("/posts/:id/comments"), commentRepo, s.Stream, jwtMiddleware)
	posts.RegisterRoutes(s.App.Group("/posts"), postRepo, s.Stream, jwtMiddleware)
	likes.RegisterRoutes(s.App.Group("/likes"), likeRepo, s.Stream, jwtMiddleware)
	profile.RegisterRoutes(s.App.Group("/profile"), imageRepo, jwtMiddleware)
	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.Cfg.TokenTTL, userRepo, imageRepo), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
