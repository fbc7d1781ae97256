package services

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/observability"
)

const (
	upsertTargetTenant = "tenant"
	upsertTargetSystem = "system"
)

// MetricPipelineConfig sizes the metric pipeline.
type MetricPipelineConfig struct {
	ChannelSize int
	// Timeout is the inactivity period after which the analytics forwarder is flushed.
	Timeout time.Duration
	// SystemID keys the system-wide aggregate document.
	SystemID string
	// OperationTimeout bounds each upsert, forward and flush.
	OperationTimeout time.Duration
}

func (c MetricPipelineConfig) withDefaults() MetricPipelineConfig {
	if c.ChannelSize <= 0 {
		c.ChannelSize = 2048
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SystemID == "" {
		c.SystemID = "IntegrationOS-Internal-System"
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = 30 * time.Second
	}
	return c
}

// MetricPipeline merges every metric into its tenant aggregate and the system aggregate,
// and optionally forwards it to external analytics.
type MetricPipeline struct {
	store     ports.Store[domain.MetricDocument]
	forwarder ports.AnalyticsBatcher
	cfg       MetricPipelineConfig
	log       *slog.Logger
	metrics   *observability.Metrics

	input *gate[domain.Metric]
	done  chan struct{}

	processed atomic.Int64
	failures  atomic.Int64
	forwarded atomic.Int64
}

// NewMetricPipeline starts the consumer goroutine. forwarder and metrics may be nil.
func NewMetricPipeline(store ports.Store[domain.MetricDocument], forwarder ports.AnalyticsBatcher, cfg MetricPipelineConfig, log *slog.Logger, metrics *observability.Metrics) *MetricPipeline {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	p := &MetricPipeline{
		store:     store,
		forwarder: forwarder,
		cfg:       cfg,
		log:       log.With("component", "metric_pipeline"),
		metrics:   metrics,
		input:     newGate[domain.Metric](cfg.ChannelSize),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// Push enqueues metric, blocking while the queue is full.
func (p *MetricPipeline) Push(ctx context.Context, metric domain.Metric) error {
	return p.accept(p.input.send(ctx, metric, true))
}

// TryPush enqueues metric or returns ErrIngestBusy when the queue is full.
func (p *MetricPipeline) TryPush(metric domain.Metric) error {
	return p.accept(p.input.send(context.Background(), metric, false))
}

func (p *MetricPipeline) accept(err error) error {
	switch {
	case err == nil:
		p.metrics.MetricAccepted()
	case errors.Is(err, ErrIngestBusy):
		p.metrics.MetricRejected(rejectBusy)
	case errors.Is(err, ErrPipelineClosed):
		p.metrics.MetricRejected(rejectClosed)
	}
	return err
}

// Close stops accepting input. Queued metrics are still processed.
func (p *MetricPipeline) Close() {
	p.input.close()
}

// Done is closed after the queue is drained and the forwarder has been flushed.
func (p *MetricPipeline) Done() <-chan struct{} {
	return p.done
}

// Shutdown closes the pipeline and waits for it to drain or for ctx to end.
func (p *MetricPipeline) Shutdown(ctx context.Context) error {
	p.Close()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MetricPipeline) Stats() PipelineStats {
	return PipelineStats{
		QueueLen:  len(p.input.queue),
		QueueCap:  cap(p.input.queue),
		Accepted:  p.input.accepted.Load(),
		Flushed:   p.processed.Load(),
		Failures:  p.failures.Load(),
		Forwarded: p.forwarded.Load(),
	}
}

func (p *MetricPipeline) run() {
	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case metric, ok := <-p.input.queue:
			if !ok {
				p.flushForwarder()
				p.logStats("metric_pipeline_closed")
				close(p.done)
				return
			}
			p.process(metric)
			timer.Reset(p.cfg.Timeout)
		case <-timer.C:
			p.flushForwarder()
			timer.Reset(p.cfg.Timeout)
		case <-statsTicker.C:
			p.logStats("metric_pipeline_stats")
		}
	}
}

// process upserts both aggregates concurrently and waits for both before forwarding.
func (p *MetricPipeline) process(metric domain.Metric) {
	update := ports.Update(metric.UpdateDoc())

	var group errgroup.Group
	group.Go(func() error {
		return p.upsert(upsertTargetTenant, metric.OwnerID(), update)
	})
	group.Go(func() error {
		return p.upsert(upsertTargetSystem, p.cfg.SystemID, update)
	})
	if err := group.Wait(); err != nil {
		p.failures.Add(1)
	}
	p.processed.Add(1)

	if p.forwarder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.OperationTimeout)
	err := p.forwarder.Push(ctx, metric.TrackMessage())
	cancel()
	p.metrics.AnalyticsPushed(err)
	if err != nil {
		p.log.Warn("metric_track_dropped", "error", err, "metric_type", metric.Type)
		return
	}
	p.forwarded.Add(1)
}

func (p *MetricPipeline) upsert(target, clientID string, update ports.Update) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.OperationTimeout)
	defer cancel()
	err := p.store.UpdateOne(ctx, ports.Filter{"clientId": clientID}, update, true)
	p.metrics.MetricUpserted(target, err)
	if err != nil {
		p.log.Error("metric_upsert_failed", "error", err, "target", target, "client_id", clientID)
	}
	return err
}

func (p *MetricPipeline) flushForwarder() {
	if p.forwarder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.OperationTimeout)
	defer cancel()
	err := p.forwarder.Flush(ctx)
	p.metrics.AnalyticsFlushed(err)
	if err != nil {
		p.log.Warn("metric_track_flush_failed", "error", err)
	}
}

func (p *MetricPipeline) logStats(msg string) {
	stats := p.Stats()
	p.log.Info(msg,
		"queue_len", stats.QueueLen,
		"queue_cap", stats.QueueCap,
		"accepted", stats.Accepted,
		"processed", stats.Flushed,
		"forwarded", stats.Forwarded,
		"upsert_errors", stats.Failures,
	)
}
