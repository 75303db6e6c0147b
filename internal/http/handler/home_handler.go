package handler

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/sifan077/PowerLink/internal/app/service"
	"github.com/sifan077/PowerLink/internal/http/view"
	"go.uber.org/zap"
)

const (
	createFailedMessage = "Failed to create short URL"
	invalidURLMessage   = "Failed to create short URL: enter a full http:// or https:// address."
	rateLimitedMessage  = "Too many links created from this address. Try again shortly."
)

// HomeDeps groups dependencies required by the home page handlers.
type HomeDeps struct {
	Logger    *zap.Logger
	Links     service.LinkService
	Poller    *service.ClickPoller
	Clock     model.Clock
	PageSize  int
	Heartbeat time.Duration
	// Refresh is how often an open click stream re-reads its page; zero
	// uses the poll interval.
	Refresh time.Duration
	// BaseContext ends every open click stream when the server shuts down.
	BaseContext context.Context
}

// HomeHandler serves the create form, the link list and its live click
// counts.
type HomeHandler struct {
	logger    *zap.Logger
	links     service.LinkService
	poller    *service.ClickPoller
	clock     model.Clock
	pageSize  int
	heartbeat time.Duration
	base      context.Context
	refresh   time.Duration
	newTicker service.NewTickerFunc
}

// NewHomeHandler creates a home handler with the provided dependencies.
func NewHomeHandler(deps HomeDeps) *HomeHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = model.SystemClock
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	base := deps.BaseContext
	if base == nil {
		base = context.Background()
	}
	return &HomeHandler{
		logger:    logger,
		links:     deps.Links,
		poller:    deps.Poller,
		clock:     clock,
		pageSize:  pageSize,
		heartbeat: deps.Heartbeat,
		base:      base,
		refresh:   deps.Refresh,
		newTicker: service.SystemTicker,
	}
}

// Register wires the home routes. createGuards run in front of link
// creation, e.g. a rate limiter.
func (h *HomeHandler) Register(router fiber.Router, createGuards ...fiber.Handler) {
	router.Get("/", h.Index)
	router.Post("/", append(createGuards, h.Create)...)
	router.Get("/clicks/stream", h.Stream)
}

// Index handles GET /?page=N&created=ID.
func (h *HomeHandler) Index(c *fiber.Ctx) error {
	return h.renderHome(c, fiber.StatusOK, view.HomePageData{Created: c.Query("created")})
}

// Create handles POST / with a url form field.
func (h *HomeHandler) Create(c *fiber.Ctx) error {
	raw := c.FormValue("url")

	rec, err := h.links.Shorten(requestContext(c), raw)
	if err != nil {
		msg := createFailedMessage
		if errors.Is(err, model.ErrValidation) {
			msg = invalidURLMessage
		}
		return h.renderHome(c, statusFor(err), view.HomePageData{URL: raw, Error: msg})
	}

	return c.Redirect("/?page=1&created="+url.QueryEscape(rec.ShortID), fiber.StatusSeeOther)
}

// RateLimited answers a create request rejected by the rate limiter.
func (h *HomeHandler) RateLimited(c *fiber.Ctx) error {
	return h.renderHome(c, fiber.StatusTooManyRequests, view.HomePageData{
		URL:   c.FormValue("url"),
		Error: rateLimitedMessage,
	})
}

func (h *HomeHandler) renderHome(c *fiber.Ctx, status int, data view.HomePageData) error {
	data.Page = h.links.Page(requestContext(c), c.QueryInt("page", 1), h.pageSize)
	data.Now = h.clock.Now()

	html, err := view.RenderHomePage(data)
	if err != nil {
		h.logger.Error("failed to render home page", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render page")
	}
	return c.Status(status).Type("html", "utf-8").SendString(html)
}

type clickEvent struct {
	ShortID string             `json:"shortId"`
	Status  service.PollStatus `json:"status"`
	Label   string             `json:"label"`
}

type removeEvent struct {
	ShortID string `json:"shortId"`
}

// Stream handles GET /clicks/stream?page=N&created=ID. It polls the click
// count of every link on the page for as long as the connection stays open.
// Links that expire meanwhile get a "remove" event; when other links move
// onto the page a "refresh" event asks the browser to reload it.
func (h *HomeHandler) Stream(c *fiber.Ctx) error {
	var initial map[string]int64
	if created := c.Query("created"); created != "" {
		initial = map[string]int64{created: 0}
	}

	streamEvents(c, h.base, h.heartbeat, h.watchClicks(c.QueryInt("page", 1), initial))
	return nil
}

func (h *HomeHandler) watchClicks(number int, initial map[string]int64) func(ctx context.Context, emit func(sseEvent) bool) {
	return func(ctx context.Context, emit func(sseEvent) bool) {
		first := true
		service.WatchPage(ctx, service.PageWatchDeps{
			Links:     h.links,
			Poller:    h.poller,
			Number:    number,
			Size:      h.pageSize,
			Refresh:   h.refresh,
			NewTicker: h.newTicker,
			Initial:   initial,
			Report: func(u service.ClickUpdate) {
				emit(sseEvent{name: "count", data: clickEvent{
					ShortID: u.ShortID,
					Status:  u.State.Status,
					Label:   u.Label(),
				}})
			},
			OnChange: func(change service.PageChange) {
				// The first page is the one the browser already rendered.
				if first {
					first = false
					return
				}
				for _, id := range change.Removed {
					emit(sseEvent{name: "remove", data: removeEvent{ShortID: id}})
				}
				if len(change.Added) > 0 {
					emit(sseEvent{name: "refresh", data: struct{}{}})
				}
			},
		})
	}
}
