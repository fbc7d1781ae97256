// Package state assembles the process-wide application state once at startup.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/integrationos/gateway/internal/analytics"
	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/app/services"
	"github.com/integrationos/gateway/internal/cache"
	"github.com/integrationos/gateway/internal/config"
	"github.com/integrationos/gateway/internal/db"
	"github.com/integrationos/gateway/internal/destination"
	"github.com/integrationos/gateway/internal/observability"
	"github.com/integrationos/gateway/internal/openapi"
	"github.com/integrationos/gateway/internal/ratelimit"
)

// Stores holds one handle per control database collection.
type Stores struct {
	Events                ports.Store[domain.Event]
	Metrics               ports.Store[domain.MetricDocument]
	EventAccess           ports.Store[domain.EventAccess]
	Connections           ports.Store[domain.Connection]
	ConnectionDefinitions ports.Store[domain.ConnectionDefinition]
	OAuthDefinitions      ports.Store[domain.FrontendOAuthConnectionDefinition]
	ModelDefinitions      ports.Store[domain.ConnectionModelDefinition]
	CommonModels          ports.Store[domain.CommonModel]
	CommonEnums           ports.Store[domain.CommonEnum]
}

// State is built once by New and not modified afterwards.
type State struct {
	Config      config.Config
	Stores      Stores
	Caches      services.AccessCaches
	Access      *services.AccessService
	Events      *services.EventPipeline
	Metrics     *services.MetricPipeline
	Secrets     ports.SecretsClient
	Dispatcher  *destination.Dispatcher
	OpenAPI     *openapi.Data
	RateLimiter ratelimit.Limiter
	Telemetry   *observability.Metrics

	backend   *backend
	generated <-chan struct{}
	log       *slog.Logger
}

// New connects the control database, builds every store, cache and collaborator,
// and starts both pipelines. Any failure aborts and releases what was opened.
func New(ctx context.Context, cfg config.Config, secrets ports.SecretsClient, log *slog.Logger, telemetry *observability.Metrics) (*State, error) {
	if log == nil {
		log = slog.Default()
	}
	if secrets == nil {
		return nil, errors.New("state requires a secrets client")
	}

	backend, err := openBackend(ctx, cfg.Database, telemetry)
	if err != nil {
		return nil, err
	}

	dispatcher, err := destination.New(destination.Config{Timeout: cfg.Server.HTTPClientTimeout}, cfg.Cache.Size, secrets, telemetry)
	if err != nil {
		_ = backend.close(context.Background())
		return nil, fmt.Errorf("create destination dispatcher: %w", err)
	}

	var forwarder ports.AnalyticsBatcher
	if cfg.AnalyticsEnabled() {
		batcher, err := analytics.New(analytics.Config{
			WriteKey: cfg.Analytics.WriteKey,
			Endpoint: cfg.Analytics.Endpoint,
			Client:   observability.NewHTTPClient(cfg.Server.HTTPClientTimeout),
		}, log)
		if err != nil {
			_ = backend.close(context.Background())
			return nil, fmt.Errorf("create analytics forwarder: %w", err)
		}
		forwarder = batcher
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedis(ctx, cfg.RateLimit.RedisURL, log)
		if err != nil {
			_ = backend.close(context.Background())
			return nil, fmt.Errorf("create rate limiter: %w", err)
		}
		limiter = redisLimiter
	} else {
		limiter = ratelimit.NewLocal(cfg.Cache.Size)
	}

	stores := Stores{
		Events:                newStore[domain.Event](backend, ports.CollectionEvents),
		Metrics:               newStore[domain.MetricDocument](backend, ports.CollectionMetrics),
		EventAccess:           newStore[domain.EventAccess](backend, ports.CollectionEventAccess),
		Connections:           newStore[domain.Connection](backend, ports.CollectionConnections),
		ConnectionDefinitions: newStore[domain.ConnectionDefinition](backend, ports.CollectionConnectionDefinitions),
		OAuthDefinitions:      newStore[domain.FrontendOAuthConnectionDefinition](backend, ports.CollectionConnectionOAuthDefinitions),
		ModelDefinitions:      newStore[domain.ConnectionModelDefinition](backend, ports.CollectionConnectionModelDefinitions),
		CommonModels:          newStore[domain.CommonModel](backend, ports.CollectionCommonModels),
		CommonEnums:           newStore[domain.CommonEnum](backend, ports.CollectionCommonEnums),
	}

	caches := services.AccessCaches{
		EventAccess: cache.New[string, domain.EventAccess](cache.Config{
			Name: "event_access", Capacity: cfg.Cache.Size, TTL: cfg.Cache.AccessKeyTTL,
		}, telemetry),
		Connections: cache.New[cache.ConnectionKey, domain.Connection](cache.Config{
			Name: "connections", Capacity: cfg.Cache.Size,
		}, telemetry),
		ConnectionDefinitions: cache.New[cache.FilterKey, domain.ReadResponse[domain.ConnectionDefinition]](cache.Config{
			Name: "connection_definitions", Capacity: cfg.Cache.Size, TTL: cfg.Cache.AccessKeyTTL,
		}, telemetry),
		OAuthDefinitions: cache.New[cache.FilterKey, domain.ReadResponse[domain.FrontendOAuthConnectionDefinition]](cache.Config{
			Name: "oauth_definitions", Capacity: cfg.Cache.Size, TTL: cfg.Cache.AccessKeyTTL,
		}, telemetry),
		ModelDefinitions: cache.New[cache.FilterKey, domain.ReadResponse[domain.ConnectionModelDefinition]](cache.Config{
			Name: "model_definitions", Capacity: cfg.Cache.Size, TTL: cfg.Cache.AccessKeyTTL,
		}, telemetry),
	}

	docs := openapi.NewData(cfg.Observability.ServiceVer, log)
	generated := docs.SpawnGeneration(context.WithoutCancel(ctx), stores.CommonModels, stores.CommonEnums)

	events := services.NewEventPipeline(stores.Events, services.EventPipelineConfig{
		BatchSize:    cfg.Pipeline.EventBufferSize,
		ChannelSize:  cfg.Pipeline.EventChannelSize,
		Timeout:      cfg.Pipeline.EventTimeout,
		WriteTimeout: cfg.Server.HTTPClientTimeout,
	}, log, telemetry)
	metrics := services.NewMetricPipeline(stores.Metrics, forwarder, services.MetricPipelineConfig{
		ChannelSize:      cfg.Pipeline.MetricChannelSize,
		Timeout:          cfg.Pipeline.EventTimeout,
		SystemID:         cfg.Pipeline.MetricSystemID,
		OperationTimeout: cfg.Server.HTTPClientTimeout,
	}, log, telemetry)

	log.Info("state_ready",
		"database", backendName(backend),
		"cache_size", cfg.Cache.Size,
		"event_batch_size", cfg.Pipeline.EventBufferSize,
		"event_channel_size", cfg.Pipeline.EventChannelSize,
		"analytics", forwarder != nil,
	)

	return &State{
		Config: cfg,
		Stores: stores,
		Caches: caches,
		Access: services.NewAccessService(services.AccessStores{
			EventAccess:           stores.EventAccess,
			Connections:           stores.Connections,
			ConnectionDefinitions: stores.ConnectionDefinitions,
			OAuthDefinitions:      stores.OAuthDefinitions,
			ModelDefinitions:      stores.ModelDefinitions,
		}, caches),
		Events:      events,
		Metrics:     metrics,
		Secrets:     secrets,
		Dispatcher:  dispatcher,
		OpenAPI:     docs,
		RateLimiter: limiter,
		Telemetry:   telemetry,
		backend:     backend,
		generated:   generated,
		log:         log,
	}, nil
}

// Ping checks the control database.
func (s *State) Ping(ctx context.Context) error {
	return s.backend.ping(ctx)
}

// Database is the sqlite handle, or nil when running on mongodb.
func (s *State) Database() *db.Database {
	return s.backend.database()
}

// Shutdown closes both pipelines, waits for them to drain, then releases the
// rate limiter and the database. Draining stops early when ctx ends.
func (s *State) Shutdown(ctx context.Context) error {
	s.Events.Close()
	s.Metrics.Close()

	var errs []error
	if err := s.Events.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain event pipeline: %w", err))
	}
	if err := s.Metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain metric pipeline: %w", err))
	}
	select {
	case <-s.generated:
	case <-ctx.Done():
	}
	if err := s.RateLimiter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close rate limiter: %w", err))
	}
	if err := s.backend.close(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("close control database: %w", err))
	}

	events, metrics := s.Events.Stats(), s.Metrics.Stats()
	s.log.Info("state_shutdown",
		"events_accepted", events.Accepted,
		"events_flushed", events.Flushed,
		"event_flush_failures", events.Failures,
		"metrics_accepted", metrics.Accepted,
		"metrics_processed", metrics.Flushed,
		"metrics_forwarded", metrics.Forwarded,
	)
	return errors.Join(errs...)
}

func backendName(b *backend) string {
	if b.mongo != nil {
		return "mongodb"
	}
	return "sqlite"
}
