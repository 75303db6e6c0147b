package storage

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerLink/config"
	"github.com/sifan077/PowerLink/internal/app/repository"
	"github.com/sifan077/PowerLink/internal/infra/filestore"
	natsclient "github.com/sifan077/PowerLink/internal/infra/nats"
	infraPostgres "github.com/sifan077/PowerLink/internal/infra/postgres"
	infraRedis "github.com/sifan077/PowerLink/internal/infra/redis"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendNATS     = "nats"
)

// Backend is the slot selected by storage.backend plus the connections it
// holds open.
type Backend struct {
	Name string
	Slot repository.Slot
	// Redis is set when the redis backend is active so other components can
	// share the connection.
	Redis  *goredis.Client
	Checks map[string]func(context.Context) error

	closers []func()
}

// Close releases the backend's connections in reverse order of opening.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// Open connects the backend named by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Backend, error) {
	b := &Backend{
		Name:   cfg.Storage.Backend,
		Checks: make(map[string]func(context.Context) error),
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
		b.Slot = repository.NewMemorySlot()

	case BackendFile:
		slot := filestore.NewSlot(cfg.Storage.Path)
		b.Slot = slot
		log.Info("Using file storage", zap.String("path", slot.Path()))

	case BackendRedis:
		client, err := infraRedis.NewClient(ctx, cfg.Redis, cfg.Storage.DialTimeout)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.Redis = client
		b.Slot = infraRedis.NewSlot(client, cfg.Storage.Key)
		b.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		log.Info("Connected to Redis successfully", zap.String("addr", client.Options().Addr))

	case BackendPostgres:
		if err := infraPostgres.Migrate(ctx, cfg.Postgres); err != nil {
			return nil, err
		}
		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres, cfg.Storage.DialTimeout)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.Slot = infraPostgres.NewSlot(pool, cfg.Storage.Key)
		b.Checks["postgres"] = pool.Ping
		log.Info("Connected to Postgres successfully",
			zap.String("host", cfg.Postgres.Host),
			zap.String("database", cfg.Postgres.Database))

	case BackendNATS:
		conn, js, err := natsclient.Connect(cfg.NATS, cfg.Storage.DialTimeout)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = conn.Drain() })
		kv, err := natsclient.OpenBucket(js, cfg.NATS.Bucket, cfg.Links.TTL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Slot = natsclient.NewSlot(kv, cfg.Storage.Key)
		b.Checks["nats"] = func(context.Context) error {
			if status := conn.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats: connection %s", status)
			}
			return nil
		}
		log.Info("Connected to NATS successfully", zap.String("bucket", cfg.NATS.Bucket))

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}

	return b, nil
}
