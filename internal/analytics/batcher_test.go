package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	segment "github.com/segmentio/analytics-go/v3"

	"github.com/integrationos/gateway/internal/observability"
)

type receivedBatch struct {
	Batch  []map[string]any `json:"batch"`
	SentAt string           `json:"sentAt"`
}

type batchServer struct {
	mu      sync.Mutex
	batches []receivedBatch
	status  int
	server  *httptest.Server
}

func newBatchServer(t *testing.T, writeKey string) *batchServer {
	t.Helper()
	bs := &batchServer{status: http.StatusOK}
	bs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/batch" || r.Method != http.MethodPost {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		user, _, ok := r.BasicAuth()
		if !ok || user != writeKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Content-Encoding") != "gzip" {
			http.Error(w, "expected gzip", http.StatusBadRequest)
			return
		}
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer zr.Close()
		var batch receivedBatch
		if err := json.NewDecoder(zr).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		bs.mu.Lock()
		bs.batches = append(bs.batches, batch)
		status := bs.status
		bs.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(bs.server.Close)
	return bs
}

func (bs *batchServer) received() []receivedBatch {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return append([]receivedBatch(nil), bs.batches...)
}

func newTestBatcher(t *testing.T, endpoint string) *Batcher {
	t.Helper()
	b, err := New(Config{WriteKey: "write-key", Endpoint: endpoint + "/", Client: observability.NewHTTPClient(0)}, observability.DiscardLogger())
	if err != nil {
		t.Fatalf("new batcher: %v", err)
	}
	return b
}

func track(user string) segment.Track {
	return segment.Track{UserId: user, Event: "Called Passthrough API", Properties: segment.NewProperties().Set("platform", "stripe")}
}

func TestFlushSendsBufferedMessages(t *testing.T) {
	server := newBatchServer(t, "write-key")
	b := newTestBatcher(t, server.server.URL)
	ctx := context.Background()

	for _, user := range []string{"a", "b", "c"} {
		if err := b.Push(ctx, track(user)); err != nil {
			t.Fatalf("push %s: %v", user, err)
		}
	}
	if got := len(server.received()); got != 0 {
		t.Fatalf("expected nothing sent before flush, got %d batches", got)
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	batches := server.received()
	if len(batches) != 1 || len(batches[0].Batch) != 3 {
		t.Fatalf("expected one batch of 3 messages, got %+v", batches)
	}
	first := batches[0].Batch[0]
	if first["type"] != "track" || first["userId"] != "a" || first["messageId"] == "" {
		t.Fatalf("unexpected message encoding: %+v", first)
	}
	if batches[0].SentAt == "" {
		t.Fatal("expected sentAt on batch")
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after flush, got %d", b.Len())
	}
}

func TestFlushEmptyBufferSendsNothing(t *testing.T) {
	server := newBatchServer(t, "write-key")
	b := newTestBatcher(t, server.server.URL)

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := len(server.received()); got != 0 {
		t.Fatalf("expected no request, got %d", got)
	}
}

func TestPushAutoFlushesAtMessageLimit(t *testing.T) {
	server := newBatchServer(t, "write-key")
	b := newTestBatcher(t, server.server.URL)
	ctx := context.Background()

	for i := 0; i < MaxBatchMessages+1; i++ {
		if err := b.Push(ctx, track("user")); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	batches := server.received()
	if len(batches) != 1 || len(batches[0].Batch) != MaxBatchMessages {
		t.Fatalf("expected one full batch of %d, got %d batches", MaxBatchMessages, len(batches))
	}
	if b.Len() != 1 {
		t.Fatalf("expected the overflowing message to stay buffered, got %d", b.Len())
	}
}

func TestPushRejectsOversizeMessage(t *testing.T) {
	server := newBatchServer(t, "write-key")
	b := newTestBatcher(t, server.server.URL)

	msg := track("user")
	msg.Properties = msg.Properties.Set("payload", strings.Repeat("x", MaxMessageBytes))
	err := b.Push(context.Background(), msg)
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected oversize message dropped, got %d buffered", b.Len())
	}
}

func TestPushRejectsInvalidMessage(t *testing.T) {
	server := newBatchServer(t, "write-key")
	b := newTestBatcher(t, server.server.URL)

	if err := b.Push(context.Background(), segment.Track{Event: "missing identity"}); err == nil {
		t.Fatal("expected validation error for message without user or anonymous id")
	}
}

func TestFlushFailureStillResetsBuffer(t *testing.T) {
	server := newBatchServer(t, "write-key")
	server.status = http.StatusBadRequest
	b := newTestBatcher(t, server.server.URL)
	ctx := context.Background()

	if err := b.Push(ctx, track("user")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.Flush(ctx); !errors.Is(err, ErrFlushRejected) {
		t.Fatalf("expected ErrFlushRejected, got %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer reset after failed flush, got %d", b.Len())
	}
}

func TestFlushUsesWriteKey(t *testing.T) {
	server := newBatchServer(t, "other-key")
	b := newTestBatcher(t, server.server.URL)
	ctx := context.Background()

	if err := b.Push(ctx, track("user")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.Flush(ctx); !errors.Is(err, ErrFlushRejected) {
		t.Fatalf("expected rejection for wrong write key, got %v", err)
	}
}

func TestNewRequiresWriteKey(t *testing.T) {
	if _, err := New(Config{Endpoint: "http://localhost"}, nil); !errors.Is(err, ErrMissingWriteKey) {
		t.Fatalf("expected ErrMissingWriteKey, got %v", err)
	}
}
