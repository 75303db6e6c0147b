package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/sifan077/PowerLink/internal/infra/metrics"
	"go.uber.org/zap"
)

// LinkService defines the creation and listing flows of the client.
type LinkService interface {
	Shorten(ctx context.Context, rawURL string) (model.LinkRecord, error)
	Links(ctx context.Context) []model.LinkRecord
	Page(ctx context.Context, number, size int) model.Page
}

// LinkCreator mints short ids on the remote service.
type LinkCreator interface {
	Create(ctx context.Context, originalURL string) (string, error)
}

// LinkStore is the local list of created links.
type LinkStore interface {
	Load(ctx context.Context) []model.LinkRecord
	Add(ctx context.Context, rec model.LinkRecord) ([]model.LinkRecord, error)
}

// LinkServiceDeps groups the collaborators of the link service.
type LinkServiceDeps struct {
	Creator   LinkCreator
	Store     LinkStore
	PublicURL string
	TTL       time.Duration
	Clock     model.Clock
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

type linkService struct {
	creator   LinkCreator
	store     LinkStore
	publicURL string
	ttl       time.Duration
	clock     model.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewLinkService returns a service implementation backed by the given store.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = model.SystemClock
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = model.DefaultTTL
	}
	return &linkService{
		creator:   deps.Creator,
		store:     deps.Store,
		publicURL: deps.PublicURL,
		ttl:       ttl,
		clock:     clock,
		logger:    logger.Named("link_service"),
		metrics:   deps.Metrics,
	}
}

func (s *linkService) Shorten(ctx context.Context, rawURL string) (model.LinkRecord, error) {
	originalURL, err := model.ValidateURL(rawURL)
	if err != nil {
		s.metrics.Create("validation")
		return model.LinkRecord{}, err
	}

	id, err := s.creator.Create(ctx, originalURL)
	if err != nil {
		s.metrics.Create(string(model.KindOf(err)))
		s.logger.Warn("failed to create short link", zap.String("url", originalURL), zap.Error(err))
		return model.LinkRecord{}, fmt.Errorf("create short link: %w", err)
	}

	rec, err := model.NewLinkRecord(id, originalURL, s.publicURL, s.clock.Now(), s.ttl)
	if err != nil {
		return model.LinkRecord{}, fmt.Errorf("build link record: %w", err)
	}

	if _, err := s.store.Add(ctx, rec); err != nil {
		return model.LinkRecord{}, fmt.Errorf("store link: %w", err)
	}

	s.metrics.Create("ok")
	s.logger.Info("short link created", zap.String("short_id", id), zap.String("url", originalURL))
	return rec, nil
}

func (s *linkService) Links(ctx context.Context) []model.LinkRecord {
	return s.store.Load(ctx)
}

func (s *linkService) Page(ctx context.Context, number, size int) model.Page {
	return model.Paginate(s.store.Load(ctx), number, size)
}
