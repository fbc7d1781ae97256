package state

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/integrationos/gateway/internal/adapters/mongodb"
	"github.com/integrationos/gateway/internal/adapters/sqlite"
	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/config"
	"github.com/integrationos/gateway/internal/db"
	"github.com/integrationos/gateway/internal/observability"
)

// backend is the connected control database behind every store handle.
// Exactly one of mongo and sqlite is set.
type backend struct {
	mongo  *mongodb.Client
	sqlite *db.Database
}

// openBackend connects the control database named by cfg.URL. Store operation
// timings from either backend go to telemetry.
func openBackend(ctx context.Context, cfg config.DatabaseConfig, telemetry *observability.Metrics) (*backend, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse control database url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "mongodb", "mongodb+srv":
		client, err := mongodb.Connect(ctx, cfg.URL, cfg.Name, telemetry)
		if err != nil {
			return nil, err
		}
		return &backend{mongo: client}, nil
	case "sqlite":
		database, err := db.New(sqlitePath(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("open sqlite control database: %w", err)
		}
		database.SetLatencyRecorder(telemetry)
		return &backend{sqlite: database}, nil
	default:
		return nil, fmt.Errorf("unsupported control database scheme %q", parsed.Scheme)
	}
}

// sqlitePath accepts sqlite://relative/path and sqlite:///absolute/path.
func sqlitePath(raw string) string {
	return strings.TrimPrefix(raw, "sqlite://")
}

func newStore[T any](b *backend, collection ports.Collection) ports.Store[T] {
	if b.mongo != nil {
		return mongodb.NewStore[T](b.mongo, collection)
	}
	return sqlite.NewStore[T](b.sqlite, collection)
}

func (b *backend) ping(ctx context.Context) error {
	if b.mongo != nil {
		return b.mongo.Ping(ctx)
	}
	return b.sqlite.Ping(ctx)
}

func (b *backend) close(ctx context.Context) error {
	if b.mongo != nil {
		return b.mongo.Close(ctx)
	}
	return b.sqlite.Close()
}

// database exposes the sqlite handle for latency reporting. It is nil on mongodb.
func (b *backend) database() *db.Database {
	return b.sqlite
}
