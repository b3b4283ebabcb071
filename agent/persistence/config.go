package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Driver        string        `split_words:"true" default:"memory"`
	DSN           string        `envconfig:"DSN"`
	MongoURI      string        `envconfig:"MONGO_URI"`
	MongoDatabase string        `envconfig:"MONGO_DATABASE" default:"sales_agent"`
	ConnTimeout   time.Duration `split_words:"true" default:"10s"`
}

// Open connects the configured backend.
func Open(ctx context.Context, cfg Config) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "pg":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("%w: DATABASE_DSN is required for postgres", ErrInvalidArgs)
		}
		return NewBunGateway(OpenBunDB(cfg.DSN)), nil
	case DriverMongo, "mongodb":
		return OpenMongoGateway(ctx, cfg)
	case DriverMemory, "":
		return NewMemoryGateway(), nil
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidArgs, cfg.Driver)
	}
}
