package server

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerLink/config"
	"github.com/sifan077/PowerLink/internal/app/service"
	"github.com/sifan077/PowerLink/internal/http/handler"
	"github.com/sifan077/PowerLink/internal/http/middleware"
	"github.com/sifan077/PowerLink/internal/http/view"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs.
type Dependencies struct {
	Logger      *zap.Logger
	UI          config.UIConfig
	Links       config.LinksConfig
	RateLimit   config.RateLimitConfig
	LinkService service.LinkService
	Poller      *service.ClickPoller
	Redirector  *service.Redirector
	// Redis backs the create rate limiter; nil disables it.
	Redis  redis.Cmdable
	Checks map[string]handler.HealthCheck
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies

	// streams is the parent of every open event stream.
	streams      context.Context
	closeStreams context.CancelFunc
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	streams, closeStreams := context.WithCancel(context.Background())
	s := &Server{
		deps:         deps,
		streams:      streams,
		closeStreams: closeStreams,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "PowerLink",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown ends every open stream, which stops their pollers and countdowns,
// then gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeStreams()
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	log := s.deps.Logger

	s.app.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
	)

	handler.NewHealthHandler(s.deps.Checks).Register(s.app)

	home := handler.NewHomeHandler(handler.HomeDeps{
		Logger:      log.Named("home"),
		Links:       s.deps.LinkService,
		Poller:      s.deps.Poller,
		PageSize:    s.deps.UI.PageSize,
		Heartbeat:   s.deps.UI.Heartbeat,
		BaseContext: s.streams,
	})
	home.Register(s.app, s.createGuards(home.RateLimited)...)

	api := handler.NewAPIHandler(handler.APIDeps{
		Logger:      log.Named("api"),
		LinkService: s.deps.LinkService,
		PageSize:    s.deps.UI.PageSize,
	})
	s.app.Use("/api", middleware.CORS(s.deps.UI.CORSOrigins))
	api.Register(s.app, s.createGuards(nil)...)

	handler.NewRedirectHandler(handler.RedirectDeps{
		Logger:      log.Named("redirect"),
		Redirector:  s.deps.Redirector,
		Countdown:   s.deps.Links.CountdownSeconds,
		Heartbeat:   s.deps.UI.Heartbeat,
		BaseContext: s.streams,
	}).Register(s.app)

	s.app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

// createGuards returns the middleware placed in front of link creation.
func (s *Server) createGuards(onLimit fiber.Handler) []fiber.Handler {
	if !s.deps.RateLimit.Enabled || s.deps.Redis == nil {
		return nil
	}
	return []fiber.Handler{
		middleware.RateLimit(s.deps.Redis, middleware.RateLimitConfig{
			MaxRequests: s.deps.RateLimit.MaxRequests,
			Window:      s.deps.RateLimit.Window,
			OnLimit:     onLimit,
		}, s.deps.Logger),
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		s.deps.Logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", middleware.RequestIDFrom(c)),
			zap.Error(err))
	}

	if strings.HasPrefix(c.Path(), "/api") {
		return c.Status(code).JSON(fiber.Map{"error": message})
	}

	if code == fiber.StatusNotFound && c.Method() == fiber.MethodGet {
		html, renderErr := view.RenderNotFoundPage(view.NotFoundPageData{Path: c.Path()})
		if renderErr == nil {
			return c.Status(code).Type("html", "utf-8").SendString(html)
		}
	}

	return c.Status(code).SendString(message)
}
