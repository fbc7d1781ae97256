package routes

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/destination"
	"github.com/integrationos/gateway/internal/observability"
	"github.com/integrationos/gateway/internal/ratelimit"
)

const (
	// SecretHeader carries the tenant's access credential.
	SecretHeader = "X-IntegrationOS-Secret"
	// ConnectionKeyHeader selects the connection a passthrough call uses.
	ConnectionKeyHeader = "X-IntegrationOS-Connection-Key"

	maxPayloadBytes = 1 << 20
)

// AccessResolver resolves credentials and cached configuration listings.
type AccessResolver interface {
	EventAccess(ctx context.Context, credential string) (domain.EventAccess, error)
	Connection(ctx context.Context, tenantID, connectionKey string) (domain.Connection, error)
	ConnectionDefinitions(ctx context.Context, query map[string]string) (domain.ReadResponse[domain.ConnectionDefinition], error)
	OAuthDefinitions(ctx context.Context, query map[string]string) (domain.ReadResponse[domain.FrontendOAuthConnectionDefinition], error)
	ModelDefinitions(ctx context.Context, query map[string]string) (domain.ReadResponse[domain.ConnectionModelDefinition], error)
}

type EventSink interface {
	TryPush(event domain.Event) error
}

type MetricSink interface {
	TryPush(metric domain.Metric) error
}

type Forwarder interface {
	Forward(ctx context.Context, conn domain.Connection, req destination.Request) (*destination.Response, error)
}

type Documents interface {
	JSON() ([]byte, error)
	YAML() ([]byte, error)
}

// Dependencies wires the gateway routes to application state.
type Dependencies struct {
	Access     AccessResolver
	Events     EventSink
	Metrics    MetricSink
	Dispatcher Forwarder
	OpenAPI    Documents
	Limiter    ratelimit.Limiter
	// RateLimit applies to access keys without their own throughput limit.
	RateLimit int
	Telemetry *observability.Metrics
	Health    func(ctx context.Context) error
	Log       *slog.Logger
}

// GatewayRoutes registers the producer-facing API.
type GatewayRoutes struct {
	deps Dependencies
	log  *slog.Logger
}

func NewGatewayRoutes(deps Dependencies) *GatewayRoutes {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &GatewayRoutes{deps: deps, log: log.With("component", "routes")}
}

// RegisterRoutes registers gateway endpoints.
func (g *GatewayRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/healthz", g.handleHealth)
	s.GET("/metrics", echo.WrapHandler(g.deps.Telemetry.Handler()))

	v1 := s.Group("/v1")
	v1.GET("/connection-definitions", g.handleConnectionDefinitions)
	v1.GET("/connection-oauth-definitions", g.handleOAuthDefinitions)
	v1.GET("/connection-model-definitions", g.handleModelDefinitions)
	v1.GET("/openapi", g.handleOpenAPIJSON)
	v1.GET("/openapi.yaml", g.handleOpenAPIYAML)

	authed := v1.Group("", g.requireAccess, g.rateLimit)
	authed.POST("/events", g.handleEvent)
	authed.Any("/passthrough/*", g.handlePassthrough)
}

func (g *GatewayRoutes) handleHealth(c echo.Context) error {
	if g.deps.Health != nil {
		if err := g.deps.Health(c.Request().Context()); err != nil {
			g.log.Warn("health_check_failed", "error", err)
			return writeError(c, http.StatusServiceUnavailable, "unhealthy")
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

func queryMap(c echo.Context) map[string]string {
	values := c.QueryParams()
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, list := range values {
		if len(list) > 0 {
			out[key] = strings.TrimSpace(list[0])
		}
	}
	return out
}
