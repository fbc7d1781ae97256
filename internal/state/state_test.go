package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/integrationos/gateway/internal/adapters/sqlite"
	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/config"
	"github.com/integrationos/gateway/internal/db"
	"github.com/integrationos/gateway/internal/observability"
	"github.com/integrationos/gateway/internal/openapi"
	"github.com/integrationos/gateway/internal/ratelimit"
	"github.com/integrationos/gateway/internal/secrets"
)

func testConfig(path string) config.Config {
	return config.Config{
		Environment: "test",
		Server:      config.ServerConfig{HTTPClientTimeout: 5 * time.Second},
		Database:    config.DatabaseConfig{URL: "sqlite://" + path, Name: "control"},
		Cache:       config.CacheConfig{Size: 16, AccessKeyTTL: time.Minute},
		Pipeline: config.PipelineConfig{
			EventBufferSize:   10,
			EventChannelSize:  10,
			EventTimeout:      time.Hour,
			MetricChannelSize: 10,
			MetricSystemID:    "system",
		},
		RateLimit:     config.RateLimitConfig{PerMinute: 60},
		Observability: config.ObservabilityConfig{ServiceVer: "test"},
	}
}

func newTestState(t *testing.T, path string) *State {
	t.Helper()
	cipher, err := secrets.New("state-test")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	st, err := New(context.Background(), testConfig(path), cipher, observability.DiscardLogger(), observability.NewMetrics())
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	return st
}

func TestNewAssemblesSQLiteState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control")
	st := newTestState(t, path)
	ctx := context.Background()

	if st.Database() == nil {
		t.Fatal("expected sqlite database handle")
	}
	if err := st.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, ok := st.RateLimiter.(*ratelimit.Local); !ok {
		t.Fatalf("expected in-process rate limiter without redis, got %T", st.RateLimiter)
	}

	access := domain.EventAccess{ID: "ea-1", AccessKey: "key-1", Active: true, Ownership: domain.Ownership{ClientID: "tenant-1"}}
	if err := st.Stores.EventAccess.InsertMany(ctx, []domain.EventAccess{access}); err != nil {
		t.Fatalf("seed access: %v", err)
	}
	resolved, err := st.Access.EventAccess(ctx, "key-1")
	if err != nil {
		t.Fatalf("resolve access: %v", err)
	}
	if resolved.Ownership.ClientID != "tenant-1" {
		t.Fatalf("unexpected access %+v", resolved)
	}
	if _, ok := st.Caches.EventAccess.Get("key-1"); !ok {
		t.Fatal("expected access to be cached after lookup")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if status := st.OpenAPI.Status(); status != openapi.StatusReady {
		t.Fatalf("expected openapi generated from empty catalogue, got %s", status)
	}
}

func TestShutdownFlushesQueuedEventsAndMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control")
	st := newTestState(t, path)
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := st.Events.Push(ctx, domain.NewEvent(domain.Event{Name: "created", Type: "customer"}, now)); err != nil {
			t.Fatalf("push event: %v", err)
		}
	}
	conn := domain.Connection{Key: "conn-1", Platform: "stripe", Ownership: domain.Ownership{ClientID: "tenant-1"}}
	if err := st.Metrics.Push(ctx, domain.NewPassthroughMetric(conn, now)); err != nil {
		t.Fatalf("push metric: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	database, err := db.New(path)
	if err != nil {
		t.Fatalf("reopen database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	events, err := sqlite.NewStore[domain.Event](database, ports.CollectionEvents).Count(ctx, nil)
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 3 {
		t.Fatalf("expected final flush to persist 3 events, got %d", events)
	}
	metricsStore := sqlite.NewStore[domain.MetricDocument](database, ports.CollectionMetrics)
	for _, clientID := range []string{"tenant-1", "system"} {
		if _, err := metricsStore.GetOne(ctx, ports.Filter{"clientId": clientID}); err != nil {
			t.Fatalf("expected aggregate for %s: %v", clientID, err)
		}
	}
}

func TestNewRejectsUnknownScheme(t *testing.T) {
	cfg := testConfig("unused")
	cfg.Database.URL = "postgres://localhost/control"
	cipher, _ := secrets.New("state-test")
	if _, err := New(context.Background(), cfg, cipher, observability.DiscardLogger(), nil); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}
