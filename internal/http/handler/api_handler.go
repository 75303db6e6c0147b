package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/sifan077/PowerLink/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	PageSize    int
}

// APIHandler exposes the local link list as JSON.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	pageSize    int
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		pageSize:    pageSize,
	}
}

// Register wires API routes onto the provided router. createGuards run in
// front of link creation.
func (h *APIHandler) Register(router fiber.Router, createGuards ...fiber.Handler) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", append(createGuards, h.CreateLink)...)
			links.Get("/", h.ListLinks)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	URL string `json:"url"`
}

// LinkResponse is one stored link.
type LinkResponse struct {
	ShortID     string    `json:"short_id"`
	ShortURL    string    `json:"short_url"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ListLinksResponse is one page of the link list.
type ListLinksResponse struct {
	Links      []LinkResponse `json:"links"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
}

func toLinkResponse(rec model.LinkRecord) LinkResponse {
	return LinkResponse{
		ShortID:     rec.ShortID,
		ShortURL:    rec.ShortURL,
		OriginalURL: rec.OriginalURL,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	}
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	rec, err := h.linkService.Shorten(requestContext(c), req.URL)
	if err != nil {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			h.logger.Error("failed to create link", zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{
			"error": createFailedMessage,
			"kind":  model.KindOf(err),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(toLinkResponse(rec))
}

// ListLinks handles GET /api/links?page=N&size=M
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	size := h.pageSize
	if parsed := c.QueryInt("size"); parsed > 0 && parsed <= 100 {
		size = parsed
	}

	page := h.linkService.Page(requestContext(c), c.QueryInt("page", 1), size)

	links := make([]LinkResponse, len(page.Items))
	for i, rec := range page.Items {
		links[i] = toLinkResponse(rec)
	}

	return c.JSON(ListLinksResponse{
		Links:      links,
		Page:       page.Number,
		Size:       page.Size,
		TotalPages: page.TotalPages,
		Total:      page.Total,
	})
}
