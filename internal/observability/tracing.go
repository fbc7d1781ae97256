package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const storeTracerName = "gateway/store"

type contextKey string

const (
	tenantIDContextKey contextKey = "observability.tenant_id"
	accessIDContextKey contextKey = "observability.access_id"
	requestIDKey       contextKey = "observability.request_id"
	routeKey           contextKey = "observability.route"
)

// Span is the application-level tracing span contract.
type Span interface {
	End()
	RecordError(error)
}

type otelSpan struct {
	inner trace.Span
}

// StartStoreSpan starts a client span for one store operation against collection.
func StartStoreSpan(ctx context.Context, system, collection, operation string) (context.Context, Span) {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = "unknown"
	}
	operation = strings.TrimSpace(operation)
	attrs := []attribute.KeyValue{
		attribute.String("db.system.name", strings.TrimSpace(system)),
		attribute.String("db.collection.name", collection),
		attribute.String("db.operation.name", operation),
	}
	if tenantID, ok := TenantIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("gateway.tenant_id", tenantID))
	}

	ctx, span := otel.Tracer(storeTracerName).Start(ctx, "store."+collection+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	return ctx, otelSpan{inner: span}
}

// WithRequestIdentity enriches context and current span with the caller's tenant and access credential id.
func WithRequestIdentity(ctx context.Context, tenantID, accessID string) context.Context {
	tenantID = strings.TrimSpace(tenantID)
	accessID = strings.TrimSpace(accessID)
	if tenantID != "" {
		ctx = context.WithValue(ctx, tenantIDContextKey, tenantID)
	}
	if accessID != "" {
		ctx = context.WithValue(ctx, accessIDContextKey, accessID)
	}
	setSpanIdentityAttributes(ctx, tenantID, accessID)
	return ctx
}

// WithRequestMetadata enriches context and current span with request metadata.
func WithRequestMetadata(ctx context.Context, requestID, route string) context.Context {
	requestID = strings.TrimSpace(requestID)
	route = strings.TrimSpace(route)
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}
	if route != "" {
		ctx = context.WithValue(ctx, routeKey, route)
	}
	setSpanRequestAttributes(ctx, requestID, route)
	return ctx
}

// TenantIDFromContext extracts the authenticated tenant id.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(tenantIDContextKey).(string)
	return value, ok && value != ""
}

// AccessIDFromContext extracts the id of the access credential used by the request.
func AccessIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(accessIDContextKey).(string)
	return value, ok && value != ""
}

// RequestIDFromContext extracts request id.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(requestIDKey).(string)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

// RouteFromContext extracts normalized route path.
func RouteFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(routeKey).(string)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func setSpanIdentityAttributes(ctx context.Context, tenantID, accessID string) {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, 2)
	if tenantID != "" {
		attrs = append(attrs, attribute.String("gateway.tenant_id", tenantID))
	}
	if accessID != "" {
		attrs = append(attrs, attribute.String("gateway.access_id", accessID))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

func setSpanRequestAttributes(ctx context.Context, requestID, route string) {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, 2)
	if requestID != "" {
		attrs = append(attrs, attribute.String("request.id", requestID))
	}
	if route != "" {
		attrs = append(attrs, attribute.String("http.route", route))
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

func (s otelSpan) End() {
	if s.inner == nil {
		return
	}
	s.inner.End()
}

func (s otelSpan) RecordError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}
