// Package analytics forwards track messages to a Segment-compatible batch endpoint.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	segment "github.com/segmentio/analytics-go/v3"

	"github.com/integrationos/gateway/internal/app/ports"
)

const (
	// MaxMessageBytes is the largest single encoded message the endpoint accepts.
	MaxMessageBytes = 32 << 10
	// MaxBatchBytes bounds the encoded batch body.
	MaxBatchBytes = 500 << 10
	// MaxBatchMessages bounds the number of messages per request.
	MaxBatchMessages = 100

	// room for the surrounding {"batch":[...],"sentAt":"..."} and separators
	envelopeOverhead = 1 << 10

	defaultEndpoint = "https://api.segment.io"
	userAgent       = "integrationos-gateway"
)

var (
	// ErrMessageTooLarge is returned by Push for a message over MaxMessageBytes. The message is dropped.
	ErrMessageTooLarge = errors.New("analytics message too large")
	// ErrFlushRejected is returned when the endpoint answers a batch with a non-2xx status.
	ErrFlushRejected = errors.New("analytics batch rejected")
	// ErrMissingWriteKey is returned by New without a write key.
	ErrMissingWriteKey = errors.New("analytics write key is required")
)

type Config struct {
	WriteKey string
	Endpoint string
	Client   *http.Client
}

// Batcher accumulates messages and sends them in size-bounded batches.
// It is not safe for concurrent use; one goroutine owns it.
type Batcher struct {
	writeKey string
	url      string
	client   *http.Client
	log      *slog.Logger
	now      func() time.Time

	buffer []json.RawMessage
	size   int
}

func New(cfg Config, log *slog.Logger) (*Batcher, error) {
	if strings.TrimSpace(cfg.WriteKey) == "" {
		return nil, ErrMissingWriteKey
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		writeKey: cfg.WriteKey,
		url:      endpoint + "/v1/batch",
		client:   client,
		log:      log.With("component", "analytics_batcher"),
		now:      time.Now,
		buffer:   make([]json.RawMessage, 0, MaxBatchMessages),
	}, nil
}

// Push validates and buffers msg, sending the current batch first when msg would not fit.
// A failed automatic send is logged; msg is still buffered.
func (b *Batcher) Push(ctx context.Context, msg segment.Track) error {
	msg.Type = "track"
	if msg.MessageId == "" {
		msg.MessageId = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = b.now().UTC()
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid analytics message: %w", err)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode analytics message: %w", err)
	}
	if len(raw) > MaxMessageBytes {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(raw))
	}

	if len(b.buffer)+1 > MaxBatchMessages || b.size+len(raw)+1 > MaxBatchBytes-envelopeOverhead {
		if err := b.Flush(ctx); err != nil {
			b.log.Warn("analytics_auto_flush_failed", "error", err)
		}
	}
	b.buffer = append(b.buffer, raw)
	b.size += len(raw) + 1
	return nil
}

// Flush sends the buffered batch. The buffer is emptied whatever the outcome.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.buffer) == 0 {
		return nil
	}
	batch := b.buffer
	b.buffer = make([]json.RawMessage, 0, MaxBatchMessages)
	b.size = 0

	payload, err := json.Marshal(struct {
		Batch  []json.RawMessage `json:"batch"`
		SentAt time.Time         `json:"sentAt"`
	}{Batch: batch, SentAt: b.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode analytics batch: %w", err)
	}

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err := zw.Write(payload); err != nil {
		return fmt.Errorf("compress analytics batch: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress analytics batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, &body)
	if err != nil {
		return fmt.Errorf("build analytics request: %w", err)
	}
	req.SetBasicAuth(b.writeKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send analytics batch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d for %d messages", ErrFlushRejected, resp.StatusCode, len(batch))
	}
	b.log.Debug("analytics_batch_sent", "messages", len(batch), "bytes", len(payload))
	return nil
}

// Len reports the number of buffered messages.
func (b *Batcher) Len() int {
	return len(b.buffer)
}

var _ ports.AnalyticsBatcher = (*Batcher)(nil)
