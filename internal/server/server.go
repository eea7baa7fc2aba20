// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jewelry-concierge/server/internal/agent/graph"
	"github.com/jewelry-concierge/server/internal/agent/retrieval"
	errx "github.com/jewelry-concierge/server/internal/core/error"
	logx "github.com/jewelry-concierge/server/pkg/logger"
)

type Config struct {
	Port         string        `envconfig:"HTTP_PORT" default:"8080"`
	BodyLimit    int           `envconfig:"HTTP_BODY_LIMIT" default:"1048576"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	AllowOrigins string        `envconfig:"HTTP_ALLOW_ORIGINS" default:"*"`
}

type Server struct {
	app       *fiber.App
	cfg       Config
	runner    graph.Runner
	retriever retrieval.Retriever
}

// New wires the routes. retriever may be nil, which disables product search.
func New(cfg Config, runner graph.Runner, retriever retrieval.Retriever) *Server {
	s := &Server{cfg: cfg, runner: runner, retriever: retriever}
	s.app = fiber.New(fiber.Config{
		AppName:               "jewelry-concierge",
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	s.app.Use(requestLogger)

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/orchestrator/:user_id", s.orchestrate)
	api.Post("/orchestrator/:user_id/stream", s.stream)
	api.Post("/products/search", s.searchProducts)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Run() error {
	logx.Info().Str("port", s.cfg.Port).Msg("http server listening")
	return s.app.Listen(":" + s.cfg.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := errx.StatusOf(err)
	msg := errx.SystemErrorMessage

	var fe *fiber.Error
	var appErr *errx.AppError
	switch {
	case errors.As(err, &fe):
		status, msg = fe.Code, fe.Message
	case errors.As(err, &appErr):
		msg = appErr.Message
	}

	if status >= fiber.StatusInternalServerError {
		logx.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	logx.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("http request")
	return err
}
