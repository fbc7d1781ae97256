package routes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/services"
	"github.com/integrationos/gateway/internal/observability"
)

const eventAccessContextKey = "eventAccess"

// requireAccess resolves the secret header to an EventAccess and stores it on the context.
func (g *GatewayRoutes) requireAccess(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		credential := strings.TrimSpace(c.Request().Header.Get(SecretHeader))
		if credential == "" {
			return writeError(c, http.StatusUnauthorized, "missing access key")
		}
		access, err := g.deps.Access.EventAccess(c.Request().Context(), credential)
		if errors.Is(err, services.ErrInvalidAccessKey) {
			return writeError(c, http.StatusUnauthorized, "invalid access key")
		}
		if err != nil {
			g.log.Error("access_lookup_failed", "error", err)
			return writeError(c, http.StatusInternalServerError, "access lookup failed")
		}

		ctx := observability.WithRequestIdentity(c.Request().Context(), access.Ownership.ClientID, access.ID)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Set(eventAccessContextKey, access)
		return next(c)
	}
}

func eventAccessFrom(c echo.Context) (domain.EventAccess, bool) {
	access, ok := c.Get(eventAccessContextKey).(domain.EventAccess)
	return access, ok
}

// rateLimit applies the access key's throughput budget. It must run after requireAccess.
func (g *GatewayRoutes) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		access, ok := eventAccessFrom(c)
		if !ok || g.deps.Limiter == nil {
			return next(c)
		}
		limit := access.Throughput.Limit
		if limit <= 0 {
			limit = g.deps.RateLimit
		}
		key := strings.TrimSpace(access.Throughput.Key)
		if key == "" {
			key = access.ID
		}

		decision := g.deps.Limiter.Allow(c.Request().Context(), key, limit)
		if decision.Limit > 0 {
			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}
		if decision.Allowed {
			return next(c)
		}

		g.deps.Telemetry.RateLimited(c.Path())
		if g.deps.Metrics != nil {
			if err := g.deps.Metrics.TryPush(domain.NewRateLimitedMetric(access, key, time.Now())); err != nil {
				g.log.Debug("rate_limited_metric_dropped", "error", err)
			}
		}
		if wait := time.Until(decision.ResetAt); wait > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
		return writeError(c, http.StatusTooManyRequests, "rate limit exceeded")
	}
}
