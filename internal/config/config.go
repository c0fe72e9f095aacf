package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"local"`
	Port string `env:"PORT" envDefault:"8080"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	RedisURL       string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass      string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	DatabaseURL    string `env:"DATABASE_URL"`

	JWTSecret  string `env:"JWT_SECRET"`
	SigningKey string `env:"SIGNING_KEY"`

	SeedTTL        time.Duration `env:"SEED_TTL" envDefault:"24h"`
	AuditRetention time.Duration `env:"AUDIT_RETENTION" envDefault:"2160h"`
	PruneInterval  time.Duration `env:"PRUNE_INTERVAL" envDefault:"5m"`

	RejectNonceReuse bool `env:"REJECT_NONCE_REUSE" envDefault:"false"`
	RoundRateLimit   int  `env:"ROUND_RATE_LIMIT" envDefault:"120"`
}

// Load parses the process environment. Call godotenv first to pick up a
// .env file.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("APP_ENV must be one of local, dev, prod: got %q", c.Env)
	}

	switch c.StorageBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.Env == EnvProd && c.SigningKey == "" {
		return fmt.Errorf("SIGNING_KEY is required in prod")
	}
	if c.PruneInterval <= 0 {
		return fmt.Errorf("PRUNE_INTERVAL must be positive")
	}
	return nil
}
