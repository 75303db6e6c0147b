package natsclient

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerLink/config"
	"github.com/sifan077/PowerLink/internal/app/model"
)

// Connect opens the NATS connection behind the key-value slot. Reconnects
// keep retrying so the slot recovers once the server is back.
func Connect(cfg config.NATSConfig, dialTimeout time.Duration) (*nats.Conn, nats.JetStreamContext, error) {
	opts := []nats.Option{
		nats.Name("powerlink"),
		nats.Timeout(dialTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(buildURL(cfg), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nats: connect %s: %w", model.ErrStorage, buildURL(cfg), err)
	}

	js, err := conn.JetStream(nats.MaxWait(dialTimeout))
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("%w: nats: jetstream: %w", model.ErrStorage, err)
	}

	return conn, js, nil
}

func buildURL(cfg config.NATSConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 4222
	}
	return fmt.Sprintf("nats://%s:%d", host, port)
}
