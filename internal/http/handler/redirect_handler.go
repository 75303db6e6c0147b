package handler

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sifan077/PowerLink/internal/app/service"
	"github.com/sifan077/PowerLink/internal/http/view"
	"go.uber.org/zap"
)

var errClientGone = errors.New("client disconnected before navigation")

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger     *zap.Logger
	Redirector *service.Redirector
	Countdown  int
	Heartbeat  time.Duration
	// BaseContext ends every open redirect stream when the server shuts down.
	BaseContext context.Context
}

// RedirectHandler implements the resolve + countdown page. The countdown
// runs on the server for as long as the page's event stream is open; the
// browser only follows the navigate event.
type RedirectHandler struct {
	logger     *zap.Logger
	redirector *service.Redirector
	countdown  int
	heartbeat  time.Duration
	base       context.Context
	sessions   *sessionRegistry
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	countdown := deps.Countdown
	if countdown <= 0 {
		countdown = service.DefaultCountdown
	}
	base := deps.BaseContext
	if base == nil {
		base = context.Background()
	}
	return &RedirectHandler{
		logger:     logger,
		redirector: deps.Redirector,
		countdown:  countdown,
		heartbeat:  deps.Heartbeat,
		base:       base,
		sessions:   newSessionRegistry(),
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/short/:id", h.Page)
	router.Get("/short/:id/events", h.Events)
	router.Post("/short/:id/go", h.Go)
}

// Page handles GET /short/:id. It only renders the shell; resolution starts
// when the page opens its event stream.
func (h *RedirectHandler) Page(c *fiber.Ctx) error {
	id := c.Params("id")
	session := uuid.NewString()
	base := "/short/" + url.PathEscape(id)

	html, err := view.RenderRedirectPage(view.RedirectPageData{
		ShortID:   id,
		EventsURL: base + "/events?session=" + session,
		GoURL:     base + "/go?session=" + session,
		Countdown: h.countdown,
	})
	if err != nil {
		h.logger.Error("failed to render redirect page", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render page")
	}

	return c.
		Type("html", "utf-8").
		SendString(html)
}

// Events handles GET /short/:id/events?session=S. It streams "state" events
// for every session change and one "navigate" event carrying the
// destination.
func (h *RedirectHandler) Events(c *fiber.Ctx) error {
	id := c.Params("id")
	sessionID := c.Query("session")
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing session")
	}
	if h.sessions.get(sessionID) != nil {
		return fiber.NewError(fiber.StatusConflict, "session already running")
	}

	streamEvents(c, h.base, h.heartbeat, h.runSession(id, sessionID))
	return nil
}

func (h *RedirectHandler) runSession(id, sessionID string) func(ctx context.Context, emit func(sseEvent) bool) {
	return func(ctx context.Context, emit func(sseEvent) bool) {
		nav := service.NavigatorFunc(func(_ context.Context, destination string) error {
			if !emit(sseEvent{name: "navigate", data: fiber.Map{"destination": destination}}) {
				return errClientGone
			}
			return nil
		})
		observe := func(st service.RedirectState) {
			emit(sseEvent{name: "state", data: st})
		}

		s, ok := h.sessions.start(sessionID, func() *service.RedirectSession {
			return h.redirector.Begin(ctx, id, nav, observe)
		})
		if !ok {
			return
		}
		defer h.sessions.remove(sessionID, s)
		defer s.Close()

		<-s.Done()
	}
}

// Go handles POST /short/:id/go?session=S, the user skipping the countdown.
func (h *RedirectHandler) Go(c *fiber.Ctx) error {
	s := h.sessions.get(c.Query("session"))
	if s == nil || s.ShortID() != c.Params("id") {
		return fiber.NewError(fiber.StatusNotFound, "no such redirect session")
	}

	err := s.NavigateNow(requestContext(c))
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusNoContent)
	case errors.Is(err, service.ErrNotRunning):
		return fiber.NewError(fiber.StatusConflict, "redirect is not counting down")
	default:
		h.logger.Warn("navigate now failed", zap.String("short_id", s.ShortID()), zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "navigation failed")
	}
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*service.RedirectSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*service.RedirectSession)}
}

// start registers the session built by begin unless id is taken.
func (r *sessionRegistry) start(id string, begin func() *service.RedirectSession) (*service.RedirectSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.sessions[id]; taken {
		return nil, false
	}
	s := begin()
	r.sessions[id] = s
	return s, true
}

func (r *sessionRegistry) get(id string) *service.RedirectSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *sessionRegistry) remove(id string, s *service.RedirectSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[id] == s {
		delete(r.sessions, id)
	}
}

func (r *sessionRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
