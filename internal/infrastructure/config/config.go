package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/99minutos/seedboard/internal/core/domain"
)

// Storage backends selectable through STORAGE.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageMongo  = "mongo"
	StorageRedis  = "redis"
)

type Config struct {
	Port          string `env:"PORT,           default=8080"`
	Env           string `env:"ENV,            default=development"`
	LogLevel      string `env:"LOG_LEVEL,      default=info"`
	SessionSecret string `env:"SESSION_SECRET"`
	Storage       string `env:"STORAGE,        default=memory"`
	DataDir       string `env:"DATA_DIR,       default=./data"`

	// Operators is the immutable allow-list of operator identities.
	Operators []string `env:"OPERATORS"`

	InitialTopic    string        `env:"INITIAL_TOPIC,    default=Welcome"`
	MaxPosts        int           `env:"MAX_POSTS,        default=100"`
	PolicyFile      string        `env:"POLICY_FILE"`
	DuplicateWindow time.Duration `env:"DUPLICATE_WINDOW, default=10s"`
	BroadcastBuffer int           `env:"BROADCAST_BUFFER, default=256"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=seedboard"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMemory, StorageFile, StorageMongo, StorageRedis:
	default:
		return fmt.Errorf("STORAGE must be one of memory, file, mongo, redis; got %q", c.Storage)
	}
	if c.MaxPosts < 1 {
		return fmt.Errorf("MAX_POSTS must be at least 1")
	}
	if c.DuplicateWindow < 0 {
		return fmt.Errorf("DUPLICATE_WINDOW must not be negative")
	}
	for _, op := range c.Operators {
		if !domain.Identity(strings.TrimSpace(op)).Valid() {
			return fmt.Errorf("OPERATORS: %q is not a %d-character identity", op, domain.IdentityLength)
		}
	}
	return nil
}

// IsProduction reports whether ENV selects production behaviour.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// OperatorIdentities returns the operator allow-list as identities.
func (c *Config) OperatorIdentities() []domain.Identity {
	out := make([]domain.Identity, 0, len(c.Operators))
	for _, op := range c.Operators {
		out = append(out, domain.Identity(strings.TrimSpace(op)))
	}
	return out
}
