package routes

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/services"
	"github.com/integrationos/gateway/internal/destination"
)

func (g *GatewayRoutes) handlePassthrough(c echo.Context) error {
	access, ok := eventAccessFrom(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "missing access key")
	}
	connectionKey := strings.TrimSpace(c.Request().Header.Get(ConnectionKeyHeader))
	if connectionKey == "" {
		return writeError(c, http.StatusBadRequest, "missing connection key")
	}

	ctx := c.Request().Context()
	conn, err := g.deps.Access.Connection(ctx, access.Ownership.ClientID, connectionKey)
	if errors.Is(err, services.ErrUnknownConnection) {
		return writeError(c, http.StatusNotFound, "unknown connection")
	}
	if err != nil {
		g.log.Error("connection_lookup_failed", "error", err)
		return writeError(c, http.StatusInternalServerError, "connection lookup failed")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes+1))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid payload")
	}
	if len(body) > maxPayloadBytes {
		return writeError(c, http.StatusRequestEntityTooLarge, "payload too large")
	}

	path := "/" + strings.TrimLeft(c.Param("*"), "/")
	started := time.Now()
	resp, err := g.deps.Dispatcher.Forward(ctx, conn, destination.Request{
		Method:  c.Request().Method,
		Path:    path,
		Query:   c.QueryParams(),
		Headers: c.Request().Header,
		Body:    body,
	})
	if errors.Is(err, destination.ErrResponseTooLarge) {
		g.log.Warn("passthrough_response_too_large", "platform", conn.Platform, "connection", conn.Key)
		return writeError(c, http.StatusBadGateway, "upstream response too large")
	}
	if err != nil {
		g.log.Warn("passthrough_failed", "platform", conn.Platform, "connection", conn.Key, "error", err)
		return writeError(c, http.StatusBadGateway, "upstream call failed")
	}

	g.record(access, conn, c.Request().Method, path, resp.StatusCode, time.Since(started), started)

	for name, values := range resp.Headers {
		for _, value := range values {
			c.Response().Header().Add(name, value)
		}
	}
	contentType := resp.Headers.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(resp.StatusCode, contentType, resp.Body)
}

// record enqueues the passthrough metric and the call event. Both are dropped when their pipeline is busy.
func (g *GatewayRoutes) record(access domain.EventAccess, conn domain.Connection, method, path string, status int, latency time.Duration, at time.Time) {
	if g.deps.Metrics != nil {
		if err := g.deps.Metrics.TryPush(domain.NewPassthroughMetric(conn, at)); err != nil {
			g.log.Debug("passthrough_metric_dropped", "error", err)
		}
	}
	if g.deps.Events != nil {
		event := domain.NewEvent(domain.Event{
			Key:         conn.Key,
			Name:        strings.ToLower(method) + " " + path,
			Type:        string(domain.MetricPassthrough),
			Group:       conn.Group,
			Environment: conn.Environment,
			Ownership:   conn.Ownership,
			AccessKeyID: access.ID,
			Method:      method,
			Path:        path,
			Platform:    conn.Platform,
			StatusCode:  status,
			LatencyMS:   latency.Milliseconds(),
		}, at)
		if err := g.deps.Events.TryPush(event); err != nil {
			g.log.Debug("passthrough_event_dropped", "error", err)
		}
	}
}
