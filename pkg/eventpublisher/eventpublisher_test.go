package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cebinding "github.com/cloudevents/sdk-go/v2/binding"
	ceevent "github.com/cloudevents/sdk-go/v2/event"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
)

func TestBuildCloudEventMapsFields(t *testing.T) {
	e, err := BuildCloudEvent(Event{
		Name:  "order.created",
		Type:  "shop.order",
		Group: "orders",
		Key:   "evt-1",
		Body:  []byte(`{"id":42}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID() != "evt-1" || e.Subject() != "order.created" || e.Type() != "shop.order" {
		t.Fatalf("unexpected event: %s", e.String())
	}
	if e.Source() != defaultSource {
		t.Fatalf("expected default source, got %q", e.Source())
	}
	if group, _ := e.Extensions()[groupExt].(string); group != "orders" {
		t.Fatalf("expected group extension, got %v", e.Extensions())
	}
	if string(e.Data()) != `{"id":42}` {
		t.Fatalf("unexpected data: %s", e.Data())
	}
}

func TestBuildCloudEventDefaults(t *testing.T) {
	e, err := BuildCloudEvent(Event{Name: "ping"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID() == "" {
		t.Fatalf("expected generated id")
	}
	if e.Type() != defaultType {
		t.Fatalf("expected default type, got %q", e.Type())
	}
	if len(e.Data()) != 0 {
		t.Fatalf("expected no data, got %s", e.Data())
	}
}

func TestBuildCloudEventRejectsInvalidInput(t *testing.T) {
	if _, err := BuildCloudEvent(Event{}); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
	if _, err := BuildCloudEvent(Event{Name: "x", Body: []byte("{broken")}); err == nil {
		t.Fatalf("expected invalid body error")
	}
}

func TestPublishSendsBinaryCloudEvent(t *testing.T) {
	var received *ceevent.Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get(secretHeader) != "sk_test" {
			t.Errorf("missing secret header")
		}
		if r.Header.Get("Ce-Specversion") == "" {
			t.Errorf("expected binary mode headers")
		}
		event, err := cebinding.ToEvent(r.Context(), cehttp.NewMessageFromHttpRequest(r))
		if err != nil {
			t.Errorf("decode cloudevent: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received = event
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "stored-1"})
	}))
	defer server.Close()

	client := Client{Endpoint: server.URL + "/", Secret: "sk_test"}
	id, err := client.Publish(context.Background(), Event{Name: "order.created", Key: "evt-9", Body: []byte(`{"ok":true}`)})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if id != "stored-1" {
		t.Fatalf("expected gateway id, got %q", id)
	}
	if received == nil || received.ID() != "evt-9" || received.Subject() != "order.created" {
		t.Fatalf("unexpected received event: %v", received)
	}
}

func TestPublishSurfacesRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid access key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := Client{Endpoint: server.URL, Secret: "bad"}
	_, err := client.Publish(context.Background(), Event{Name: "x"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestPublishRequiresEndpointAndSecret(t *testing.T) {
	if _, err := (Client{}).Publish(context.Background(), Event{Name: "x"}); err == nil {
		t.Fatalf("expected configuration error")
	}
}
