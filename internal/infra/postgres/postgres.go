package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/PowerLink/config"
	"github.com/sifan077/PowerLink/internal/app/model"
)

// slotPoolSize covers one slot query plus a concurrent health ping.
const slotPoolSize = 2

// NewPool opens the small pgx pool the slot runs on and pings it. Connecting
// and the ping share dialTimeout.
func NewPool(ctx context.Context, cfg config.PostgresConfig, dialTimeout time.Duration) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: parse config: %w", model.ErrStorage, err)
	}
	poolCfg.MaxConns = slotPoolSize
	poolCfg.MinConns = 0
	poolCfg.ConnConfig.ConnectTimeout = dialTimeout

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: create pool: %w", model.ErrStorage, err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: postgres: ping %s: %w", model.ErrStorage, poolCfg.ConnConfig.Host, err)
	}
	return pool, nil
}

// ConnString renders cfg as a postgres:// URL tagged with the application
// name, filling in localhost:5432 and sslmode=disable.
func ConnString(cfg config.PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else if cfg.User != "" {
		u.User = url.User(cfg.User)
	}
	q := url.Values{}
	q.Set("application_name", "powerlink")
	q.Set("sslmode", sslMode)
	u.RawQuery = q.Encode()
	return u.String()
}
