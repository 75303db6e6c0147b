package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerLink/config"
	"github.com/sifan077/PowerLink/internal/app/repository"
	appserver "github.com/sifan077/PowerLink/internal/app/server"
	"github.com/sifan077/PowerLink/internal/app/service"
	"github.com/sifan077/PowerLink/internal/http/handler"
	"github.com/sifan077/PowerLink/internal/infra/linkapi"
	"github.com/sifan077/PowerLink/internal/infra/logger"
	"github.com/sifan077/PowerLink/internal/infra/metrics"
	infraRedis "github.com/sifan077/PowerLink/internal/infra/redis"
	"github.com/sifan077/PowerLink/internal/infra/storage"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.MustInit(logger.Config{
		Development: os.Getenv("APP_ENV") != "production",
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	log = logger.MustInit(logger.FromApp(cfg.App, "stdout"))

	log.Info("Configuration loaded successfully",
		zap.String("env", cfg.App.Env),
		zap.String("link_service", cfg.Service.BaseURL),
		zap.String("public_url", cfg.UI.PublicURL),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Duration("link_ttl", cfg.Links.TTL),
		zap.Duration("poll_interval", cfg.Links.PollInterval),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	if cfg.Prometheus.Enabled {
		promServer := metrics.NewServer(cfg.Prometheus, registry)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Prometheus metrics server disabled")
	}

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open link storage", zap.Error(err), zap.String("backend", cfg.Storage.Backend))
	}
	defer backend.Close()

	client, err := linkapi.New(cfg.Service, linkapi.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to build link service client", zap.Error(err))
	}

	store := repository.NewLinkStore(repository.LinkStoreDeps{
		Slot:    backend.Slot,
		Logger:  log,
		Metrics: m,
	})
	linkService := service.NewLinkService(service.LinkServiceDeps{
		Creator:   client,
		Store:     store,
		PublicURL: cfg.UI.PublicURL,
		TTL:       cfg.Links.TTL,
		Logger:    log,
		Metrics:   m,
	})
	poller := service.NewClickPoller(service.ClickPollerDeps{
		Counter:  client,
		Interval: cfg.Links.PollInterval,
		Logger:   log,
		Metrics:  m,
	})
	redirector := service.NewRedirector(service.RedirectorDeps{
		Resolver:  client,
		Countdown: cfg.Links.CountdownSeconds,
		Logger:    log,
		Metrics:   m,
	})

	checks := make(map[string]handler.HealthCheck, len(backend.Checks))
	for name, check := range backend.Checks {
		checks[name] = check
	}

	var limiter goredis.Cmdable
	if cfg.RateLimit.Enabled {
		if backend.Redis != nil {
			limiter = backend.Redis
		} else {
			rdb, err := infraRedis.NewClient(ctx, cfg.Redis, cfg.Storage.DialTimeout)
			if err != nil {
				log.Fatal("Failed to connect to Redis for rate limiting", zap.Error(err))
			}
			defer rdb.Close()
			limiter = rdb
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
		log.Info("Rate limiting link creation",
			zap.Int("max_requests", cfg.RateLimit.MaxRequests),
			zap.Duration("window", cfg.RateLimit.Window))
	}

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		UI:          cfg.UI,
		Links:       cfg.Links,
		RateLimit:   cfg.RateLimit,
		LinkService: linkService,
		Poller:      poller,
		Redirector:  redirector,
		Redis:       limiter,
		Checks:      checks,
	})

	listenErr := make(chan error, 1)
	go func() {
		log.Info("Starting PowerLink web UI", zap.String("addr", cfg.UI.Addr))
		listenErr <- server.Listen(cfg.UI.Addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Graceful shutdown failed", zap.Error(err))
		}
	}
}
