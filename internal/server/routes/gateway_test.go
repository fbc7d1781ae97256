package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/services"
	"github.com/integrationos/gateway/internal/destination"
	"github.com/integrationos/gateway/internal/observability"
	"github.com/integrationos/gateway/internal/openapi"
	"github.com/integrationos/gateway/internal/ratelimit"
	"github.com/integrationos/gateway/internal/secrets"
)

type accessFake struct {
	accesses    map[string]domain.EventAccess
	connections map[string]domain.Connection
	lastQuery   map[string]string
}

func (f *accessFake) EventAccess(_ context.Context, credential string) (domain.EventAccess, error) {
	access, ok := f.accesses[credential]
	if !ok {
		return domain.EventAccess{}, services.ErrInvalidAccessKey
	}
	return access, nil
}

func (f *accessFake) Connection(_ context.Context, tenantID, key string) (domain.Connection, error) {
	conn, ok := f.connections[tenantID+"/"+key]
	if !ok {
		return domain.Connection{}, services.ErrUnknownConnection
	}
	return conn, nil
}

func (f *accessFake) ConnectionDefinitions(_ context.Context, query map[string]string) (domain.ReadResponse[domain.ConnectionDefinition], error) {
	f.lastQuery = query
	if query["limit"] == "bad" {
		return domain.ReadResponse[domain.ConnectionDefinition]{}, services.ErrInvalidListQuery
	}
	rows := []domain.ConnectionDefinition{{ID: "cd-1", Key: "stripe", Platform: "stripe"}}
	return domain.ReadResponse[domain.ConnectionDefinition]{Rows: rows, Total: 1, Limit: 20}, nil
}

func (f *accessFake) OAuthDefinitions(_ context.Context, query map[string]string) (domain.ReadResponse[domain.FrontendOAuthConnectionDefinition], error) {
	f.lastQuery = query
	return domain.ReadResponse[domain.FrontendOAuthConnectionDefinition]{}, errors.New("store down")
}

func (f *accessFake) ModelDefinitions(_ context.Context, query map[string]string) (domain.ReadResponse[domain.ConnectionModelDefinition], error) {
	f.lastQuery = query
	rows := []domain.ConnectionModelDefinition{{ID: "m-1", ConnectionPlatform: "shopify", ModelName: "Orders"}}
	return domain.ReadResponse[domain.ConnectionModelDefinition]{Rows: rows, Total: 1, Limit: 20}, nil
}

type sink[T any] struct {
	mu    sync.Mutex
	items []T
	err   error
}

func (s *sink[T]) TryPush(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, item)
	return nil
}

func (s *sink[T]) all() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.items...)
}

type docsFake struct {
	err error
}

func (d docsFake) JSON() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []byte(`{"openapi":"3.0.3"}`), nil
}

func (d docsFake) YAML() ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []byte("openapi: 3.0.3\n"), nil
}

type harness struct {
	e       *echo.Echo
	access  *accessFake
	events  *sink[domain.Event]
	metrics *sink[domain.Metric]
	deps    Dependencies
}

func newHarness(t *testing.T, upstreamURL string) *harness {
	t.Helper()
	cipher, err := secrets.New("routes-test")
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	sealed, err := cipher.Encrypt(context.Background(), "sk_test")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	dispatcher, err := destination.New(destination.Config{}, 8, cipher, nil)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}

	owner := domain.Ownership{ClientID: "tenant-1", BuildableID: "tenant-1"}
	access := &accessFake{
		accesses: map[string]domain.EventAccess{
			"secret-1": {ID: "ea-1", Group: "default", Environment: "test", Platform: "gateway", Ownership: owner},
			"secret-limited": {
				ID: "ea-2", Ownership: owner,
				Throughput: domain.Throughput{Key: "limited", Limit: 1},
			},
		},
		connections: map[string]domain.Connection{
			"tenant-1/conn-1": {Key: "conn-1", Platform: "stripe", BaseURL: upstreamURL, Secret: sealed, Ownership: owner},
		},
	}
	h := &harness{
		e:       echo.New(),
		access:  access,
		events:  &sink[domain.Event]{},
		metrics: &sink[domain.Metric]{},
	}
	h.deps = Dependencies{
		Access:     access,
		Events:     h.events,
		Metrics:    h.metrics,
		Dispatcher: dispatcher,
		OpenAPI:    docsFake{},
		Limiter:    ratelimit.NewLocal(16),
		RateLimit:  100,
		Telemetry:  observability.NewMetrics(),
		Log:        observability.DiscardLogger(),
	}
	return h
}

func (h *harness) serve(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if len(h.e.Routes()) == 0 {
		NewGatewayRoutes(h.deps).RegisterRoutes(h.e)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	h.deps.Health = func(context.Context) error { return errors.New("db down") }

	rec := h.serve(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when dependency is down, got %d", rec.Code)
	}
}

func TestMetricsEndpointExposesRegistry(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	h.deps.Telemetry.EventAccepted()

	rec := h.serve(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gateway_events_received_total 1") {
		t.Fatalf("expected events counter in exposition, got %s", rec.Body.String())
	}
}

func TestEventRequiresValidSecret(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	missing := h.serve(t, httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"name":"x"}`)))
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", missing.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"name":"x"}`))
	req.Header.Set(SecretHeader, "wrong")
	if rec := h.serve(t, req); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown secret, got %d", rec.Code)
	}
	if len(h.events.all()) != 0 {
		t.Fatal("expected no events enqueued")
	}
}

func TestEventAcceptsJSONPayload(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"name":"created","type":"Customer","body":{"id":1}}`))
	req.Header.Set(SecretHeader, "secret-1")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := h.serve(t, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}

	events := h.events.all()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	got := events[0]
	if got.Ownership.ClientID != "tenant-1" || got.AccessKeyID != "ea-1" || got.Environment != "test" || got.Group != "default" {
		t.Fatalf("expected access identity on event, got %+v", got)
	}
	if got.Body != `{"id":1}` || got.Topic != "customer.created" || got.State != domain.EventStatePending {
		t.Fatalf("unexpected event fields %+v", got)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp["id"] != got.ID {
		t.Fatalf("expected event id in response, got %s", rec.Body.String())
	}
}

func TestEventAcceptsBinaryCloudEvent(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"amount":10}`))
	req.Header.Set(SecretHeader, "secret-1")
	req.Header.Set("Ce-Specversion", "1.0")
	req.Header.Set("Ce-Id", "ce-1")
	req.Header.Set("Ce-Source", "/billing")
	req.Header.Set("Ce-Type", "invoice.paid")
	req.Header.Set("Ce-Subject", "paid")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := h.serve(t, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}

	events := h.events.all()
	if len(events) != 1 || events[0].Key != "ce-1" || events[0].Name != "paid" || events[0].Type != "invoice.paid" {
		t.Fatalf("unexpected cloud event mapping %+v", events)
	}
	if events[0].Body != `{"amount":10}` {
		t.Fatalf("expected cloud event data as body, got %q", events[0].Body)
	}
}

func TestEventAcceptsStructuredCloudEvent(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	payload := `{"specversion":"1.0","id":"ce-2","source":"/crm","type":"contact.created","data":{"name":"Ada"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(payload))
	req.Header.Set(SecretHeader, "secret-1")
	req.Header.Set(echo.HeaderContentType, "application/cloudevents+json")
	rec := h.serve(t, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}
	events := h.events.all()
	if len(events) != 1 || events[0].Name != "contact.created" || events[0].Body != `{"name":"Ada"}` {
		t.Fatalf("unexpected structured mapping %+v", events)
	}
}

func TestEventRejectsInvalidPayload(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	for _, body := range []string{`not json`, `{"type":"missing name"}`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(body))
		req.Header.Set(SecretHeader, "secret-1")
		if rec := h.serve(t, req); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %q, got %d", body, rec.Code)
		}
	}
}

func TestEventBusyPipeline(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")
	h.events.err = services.ErrIngestBusy

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"name":"created"}`))
	req.Header.Set(SecretHeader, "secret-1")
	if rec := h.serve(t, req); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when pipeline busy, got %d", rec.Code)
	}
}

func TestPassthroughForwardsAndRecords(t *testing.T) {
	var gotAuth, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `[{"id":"cus_1"}]`)
	}))
	defer upstream.Close()
	h := newHarness(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/v1/passthrough/customers?limit=1", nil)
	req.Header.Set(SecretHeader, "secret-1")
	req.Header.Set(ConnectionKeyHeader, "conn-1")
	rec := h.serve(t, req)
	if rec.Code != http.StatusOK || rec.Body.String() != `[{"id":"cus_1"}]` {
		t.Fatalf("unexpected passthrough response %d %s", rec.Code, rec.Body.String())
	}
	if gotAuth != "Bearer sk_test" || gotPath != "/customers" {
		t.Fatalf("unexpected upstream call auth=%q path=%q", gotAuth, gotPath)
	}

	metrics := h.metrics.all()
	if len(metrics) != 1 || metrics[0].Type != domain.MetricPassthrough || metrics[0].OwnerID() != "tenant-1" {
		t.Fatalf("expected one passthrough metric, got %+v", metrics)
	}
	events := h.events.all()
	if len(events) != 1 || events[0].StatusCode != http.StatusOK || events[0].Path != "/customers" || events[0].Platform != "stripe" {
		t.Fatalf("expected passthrough event, got %+v", events)
	}
}

func TestPassthroughOversizedUpstreamIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(make([]byte, 10<<20+1))
	}))
	defer upstream.Close()
	h := newHarness(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/v1/passthrough/export", nil)
	req.Header.Set(SecretHeader, "secret-1")
	req.Header.Set(ConnectionKeyHeader, "conn-1")
	rec := h.serve(t, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for oversized upstream body, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too large") {
		t.Fatalf("unexpected error body %s", rec.Body.String())
	}
	if len(h.events.all()) != 0 {
		t.Fatal("expected no passthrough event for a failed call")
	}
}

func TestPassthroughConnectionErrors(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodGet, "/v1/passthrough/customers", nil)
	req.Header.Set(SecretHeader, "secret-1")
	if rec := h.serve(t, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without connection key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/passthrough/customers", nil)
	req.Header.Set(SecretHeader, "secret-1")
	req.Header.Set(ConnectionKeyHeader, "other")
	if rec := h.serve(t, req); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown connection, got %d", rec.Code)
	}
	if len(h.metrics.all()) != 0 {
		t.Fatal("expected no metric for rejected passthrough")
	}
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{"name":"created"}`))
		req.Header.Set(SecretHeader, "secret-limited")
		return h.serve(t, req)
	}
	if rec := send(); rec.Code != http.StatusAccepted {
		t.Fatalf("expected first request accepted, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected rate limit headers, got %v", rec.Header())
	}

	metrics := h.metrics.all()
	if len(metrics) != 1 || metrics[0].Type != domain.MetricRateLimited || metrics[0].ConnectionKey != "limited" {
		t.Fatalf("expected rateLimited metric, got %+v", metrics)
	}
	if len(h.events.all()) != 1 {
		t.Fatal("expected rejected request not to enqueue an event")
	}
}

func TestConnectionDefinitionListing(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	rec := h.serve(t, httptest.NewRequest(http.MethodGet, "/v1/connection-definitions?platform=stripe", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if h.access.lastQuery["platform"] != "stripe" {
		t.Fatalf("expected query forwarded as filter, got %v", h.access.lastQuery)
	}
	var page domain.ReadResponse[domain.ConnectionDefinition]
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil || page.Total != 1 || page.Rows[0].Key != "stripe" {
		t.Fatalf("unexpected listing %s", rec.Body.String())
	}

	if rec := h.serve(t, httptest.NewRequest(http.MethodGet, "/v1/connection-definitions?limit=bad", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad query, got %d", rec.Code)
	}
	if rec := h.serve(t, httptest.NewRequest(http.MethodGet, "/v1/connection-oauth-definitions", nil)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when store fails, got %d", rec.Code)
	}
	if rec := h.serve(t, httptest.NewRequest(http.MethodGet, "/v1/connection-model-definitions", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for model definitions, got %d", rec.Code)
	}
	if h.access.lastQuery != nil {
		t.Fatalf("expected nil query without parameters, got %v", h.access.lastQuery)
	}
}

func TestOpenAPIRoutes(t *testing.T) {
	h := newHarness(t, "http://127.0.0.1:1")

	rec := h.serve(t, httptest.NewRequest(http.MethodGet, "/v1/openapi.yaml", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "application/yaml") {
		t.Fatalf("unexpected yaml response %d %v", rec.Code, rec.Header())
	}

	pending := newHarness(t, "http://127.0.0.1:1")
	pending.deps.OpenAPI = docsFake{err: openapi.ErrNotReady}
	rec = pending.serve(t, httptest.NewRequest(http.MethodGet, "/v1/openapi", nil))
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 503 while generating, got %d", rec.Code)
	}
}
