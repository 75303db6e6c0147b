package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App AppConfig `mapstructure:"app"`

	// Remote link service (create / resolve / click count)
	Service ServiceConfig `mapstructure:"service"`

	// Web UI
	UI UIConfig `mapstructure:"ui"`

	// Link lifetime, polling and countdown
	Links LinksConfig `mapstructure:"links"`

	// Durable slot holding the ephemeral link list
	Storage StorageConfig `mapstructure:"storage"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Env         string `mapstructure:"env"`
	LogLevel    string `mapstructure:"log_level"`
	LogEncoding string `mapstructure:"log_encoding"`
}

// Development reports whether the process runs outside production.
func (c AppConfig) Development() bool {
	return c.Env != "production"
}

type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type UIConfig struct {
	Addr        string        `mapstructure:"addr"`
	PublicURL   string        `mapstructure:"public_url"`
	PageSize    int           `mapstructure:"page_size"`
	Heartbeat   time.Duration `mapstructure:"heartbeat"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
}

type LinksConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	CountdownSeconds int           `mapstructure:"countdown_seconds"`
}

type StorageConfig struct {
	// Backend is one of memory, file, redis, postgres, nats.
	Backend string `mapstructure:"backend"`
	Key     string `mapstructure:"key"`
	Path    string `mapstructure:"path"`
	// DialTimeout bounds connecting to the redis, postgres or nats backend.
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Bucket   string `mapstructure:"bucket"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// Load reads configuration into a fresh viper instance.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith reads configuration using v, which may already carry bound CLI flags.
func LoadWith(v *viper.Viper) (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	setDefaults(v)

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("config: service.base_url is required")
	}
	if c.Links.TTL <= 0 {
		return fmt.Errorf("config: links.ttl must be positive, got %s", c.Links.TTL)
	}
	if c.Links.PollInterval <= 0 {
		return fmt.Errorf("config: links.poll_interval must be positive, got %s", c.Links.PollInterval)
	}
	if c.Links.CountdownSeconds <= 0 {
		return fmt.Errorf("config: links.countdown_seconds must be positive, got %d", c.Links.CountdownSeconds)
	}
	if c.Storage.DialTimeout <= 0 {
		return fmt.Errorf("config: storage.dial_timeout must be positive, got %s", c.Storage.DialTimeout)
	}
	switch c.Storage.Backend {
	case "memory", "file", "redis", "postgres", "nats":
	default:
		return fmt.Errorf("config: unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_encoding", "console")

	v.SetDefault("service.base_url", "http://localhost:8080")
	v.SetDefault("service.timeout", 5*time.Second)

	v.SetDefault("ui.addr", ":3000")
	v.SetDefault("ui.public_url", "http://localhost:3000")
	v.SetDefault("ui.page_size", 5)
	v.SetDefault("ui.heartbeat", 15*time.Second)
	v.SetDefault("ui.cors_origins", []string{"*"})

	v.SetDefault("links.ttl", 10*time.Minute)
	v.SetDefault("links.poll_interval", 5*time.Second)
	v.SetDefault("links.countdown_seconds", 10)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.key", "powerlink.links")
	v.SetDefault("storage.path", "./data/links.json")
	v.SetDefault("storage.dial_timeout", 5*time.Second)

	v.SetDefault("nats.bucket", "powerlink")

	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.window", time.Minute)
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.log_level", "LOG_LEVEL")

	v.BindEnv("service.base_url", "LINK_SERVICE_URL")
	v.BindEnv("ui.public_url", "PUBLIC_URL")
	v.BindEnv("storage.backend", "STORAGE_BACKEND")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")
}
