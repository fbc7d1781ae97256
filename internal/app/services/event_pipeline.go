package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/observability"
)

const statsInterval = 30 * time.Second

// EventPipelineConfig sizes the event pipeline.
type EventPipelineConfig struct {
	// BatchSize is the event count that triggers a flush.
	BatchSize int
	// ChannelSize bounds the number of queued, not yet batched events.
	ChannelSize int
	// Timeout is the inactivity period after which a non-empty batch is flushed.
	Timeout time.Duration
	// WriteTimeout bounds each InsertMany.
	WriteTimeout time.Duration
}

func (c EventPipelineConfig) withDefaults() EventPipelineConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 2048
	}
	if c.ChannelSize <= 0 {
		c.ChannelSize = c.BatchSize
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	return c
}

// EventPipeline batches events and writes each batch with one InsertMany.
// Writes are not awaited by producers; a failed batch is logged and dropped.
type EventPipeline struct {
	store   ports.Store[domain.Event]
	cfg     EventPipelineConfig
	log     *slog.Logger
	metrics *observability.Metrics

	input    *gate[domain.Event]
	inflight sync.WaitGroup
	done     chan struct{}

	batches  atomic.Int64
	flushed  atomic.Int64
	failures atomic.Int64
}

// NewEventPipeline starts the consumer goroutine. metrics may be nil.
func NewEventPipeline(store ports.Store[domain.Event], cfg EventPipelineConfig, log *slog.Logger, metrics *observability.Metrics) *EventPipeline {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	p := &EventPipeline{
		store:   store,
		cfg:     cfg,
		log:     log.With("component", "event_pipeline"),
		metrics: metrics,
		input:   newGate[domain.Event](cfg.ChannelSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Push enqueues event, blocking while the queue is full.
func (p *EventPipeline) Push(ctx context.Context, event domain.Event) error {
	return p.accept(p.input.send(ctx, event, true))
}

// TryPush enqueues event or returns ErrIngestBusy when the queue is full.
func (p *EventPipeline) TryPush(event domain.Event) error {
	return p.accept(p.input.send(context.Background(), event, false))
}

func (p *EventPipeline) accept(err error) error {
	switch {
	case err == nil:
		p.metrics.EventAccepted()
	case errors.Is(err, ErrIngestBusy):
		p.metrics.EventRejected(rejectBusy)
	case errors.Is(err, ErrPipelineClosed):
		p.metrics.EventRejected(rejectClosed)
	}
	return err
}

// Close stops accepting input. Queued events are still flushed.
func (p *EventPipeline) Close() {
	p.input.close()
}

// Done is closed once the final batch is flushed and every write has returned.
func (p *EventPipeline) Done() <-chan struct{} {
	return p.done
}

// Shutdown closes the pipeline and waits for it to drain or for ctx to end.
func (p *EventPipeline) Shutdown(ctx context.Context) error {
	p.Close()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPipeline) Stats() PipelineStats {
	return PipelineStats{
		QueueLen: len(p.input.queue),
		QueueCap: cap(p.input.queue),
		Accepted: p.input.accepted.Load(),
		Batches:  p.batches.Load(),
		Flushed:  p.flushed.Load(),
		Failures: p.failures.Load(),
	}
}

func (p *EventPipeline) run() {
	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	batch := make([]domain.Event, 0, p.cfg.BatchSize)
	for {
		select {
		case event, ok := <-p.input.queue:
			if !ok {
				if len(batch) > 0 {
					p.flush(batch, flushTriggerShutdown)
				}
				p.inflight.Wait()
				p.logStats("event_pipeline_closed")
				close(p.done)
				return
			}
			batch = append(batch, event)
			if len(batch) >= p.cfg.BatchSize {
				p.flush(batch, flushTriggerSize)
				batch = make([]domain.Event, 0, p.cfg.BatchSize)
			}
			timer.Reset(p.cfg.Timeout)
		case <-timer.C:
			if len(batch) > 0 {
				p.flush(batch, flushTriggerTimeout)
				batch = make([]domain.Event, 0, p.cfg.BatchSize)
			}
			timer.Reset(p.cfg.Timeout)
		case <-statsTicker.C:
			p.logStats("event_pipeline_stats")
		}
	}
}

// flush hands batch to a writer goroutine. The caller must not reuse batch.
func (p *EventPipeline) flush(batch []domain.Event, trigger string) {
	p.batches.Add(1)
	p.metrics.EventBatchDispatched(trigger)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
		defer cancel()
		err := p.store.InsertMany(ctx, batch)
		p.metrics.EventBatchWritten(len(batch), err)
		if err != nil {
			p.failures.Add(1)
			p.log.Error("event_batch_flush_failed", "error", err, "batch_size", len(batch), "trigger", trigger)
			return
		}
		p.flushed.Add(int64(len(batch)))
		p.log.Debug("event_batch_flushed", "batch_size", len(batch), "trigger", trigger)
	}()
}

func (p *EventPipeline) logStats(msg string) {
	stats := p.Stats()
	p.log.Info(msg,
		"queue_len", stats.QueueLen,
		"queue_cap", stats.QueueCap,
		"accepted", stats.Accepted,
		"flush_batches", stats.Batches,
		"flush_events", stats.Flushed,
		"flush_errors", stats.Failures,
	)
}
