package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "gateway"

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	storeBuckets     = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
)

// Metrics holds the process collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsReceived   prometheus.Counter
	eventsRejected   *prometheus.CounterVec
	eventBatches     *prometheus.CounterVec
	eventsFlushed    prometheus.Counter
	eventFlushErrors prometheus.Counter

	metricsReceived  prometheus.Counter
	metricsRejected  *prometheus.CounterVec
	metricUpserts    *prometheus.CounterVec
	analyticsPushed  *prometheus.CounterVec
	analyticsFlushes *prometheus.CounterVec

	cacheLookups   *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "events",
			Name: "received_total", Help: "Events accepted into the save pipeline",
		}),
		eventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "events",
			Name: "rejected_total", Help: "Events refused by the save pipeline",
		}, []string{"reason"}),
		eventBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "events",
			Name: "batches_total", Help: "Event batches dispatched to storage",
		}, []string{"trigger"}),
		eventsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "events",
			Name: "flushed_total", Help: "Events persisted by successful batch writes",
		}),
		eventFlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "events",
			Name: "flush_failures_total", Help: "Event batch writes that failed and were dropped",
		}),
		metricsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "metrics",
			Name: "received_total", Help: "Metrics accepted into the telemetry pipeline",
		}),
		metricsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "metrics",
			Name: "rejected_total", Help: "Metrics refused by the telemetry pipeline",
		}, []string{"reason"}),
		metricUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "metrics",
			Name: "upserts_total", Help: "Metric aggregate upserts",
		}, []string{"target", "result"}),
		analyticsPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "analytics",
			Name: "messages_total", Help: "Messages offered to the analytics forwarder",
		}, []string{"result"}),
		analyticsFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "analytics",
			Name: "flushes_total", Help: "Analytics forwarder flushes",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "cache",
			Name: "lookups_total", Help: "Keyed cache lookups",
		}, []string{"cache", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "store",
			Name: "operation_duration_seconds", Help: "Latency of control database store operations",
			Buckets: storeBuckets,
		}, []string{"system", "collection", "operation", "result"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "http",
			Name: "requests_total", Help: "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "http",
			Name: "request_duration_seconds", Help: "Latency distribution of HTTP handlers",
			Buckets: histogramBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "http",
			Name: "rate_limit_hits_total", Help: "Number of rate-limited responses",
		}, []string{"route"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsReceived, m.eventsRejected, m.eventBatches, m.eventsFlushed, m.eventFlushErrors,
		m.metricsReceived, m.metricsRejected, m.metricUpserts, m.analyticsPushed, m.analyticsFlushes,
		m.cacheLookups, m.storeLatency, m.requestTotal, m.requestLatency, m.rateLimitHits,
	)
	return m
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) EventAccepted() {
	if m == nil {
		return
	}
	m.eventsReceived.Inc()
}

func (m *Metrics) EventRejected(reason string) {
	if m == nil {
		return
	}
	m.eventsRejected.WithLabelValues(reason).Inc()
}

// EventBatchDispatched counts one batch handed to storage, labelled by what triggered it.
func (m *Metrics) EventBatchDispatched(trigger string) {
	if m == nil {
		return
	}
	m.eventBatches.WithLabelValues(trigger).Inc()
}

// EventBatchWritten records the outcome of one batch write.
func (m *Metrics) EventBatchWritten(size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.eventFlushErrors.Inc()
		return
	}
	m.eventsFlushed.Add(float64(size))
}

func (m *Metrics) MetricAccepted() {
	if m == nil {
		return
	}
	m.metricsReceived.Inc()
}

func (m *Metrics) MetricRejected(reason string) {
	if m == nil {
		return
	}
	m.metricsRejected.WithLabelValues(reason).Inc()
}

// MetricUpserted records one aggregate upsert against target ("tenant" or "system").
func (m *Metrics) MetricUpserted(target string, err error) {
	if m == nil {
		return
	}
	m.metricUpserts.WithLabelValues(target, resultLabel(err)).Inc()
}

func (m *Metrics) AnalyticsPushed(err error) {
	if m == nil {
		return
	}
	result := "queued"
	if err != nil {
		result = "dropped"
	}
	m.analyticsPushed.WithLabelValues(result).Inc()
}

func (m *Metrics) AnalyticsFlushed(err error) {
	if m == nil {
		return
	}
	m.analyticsFlushes.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveCacheLookup satisfies cache.Recorder.
func (m *Metrics) ObserveCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveStoreOperation satisfies db.LatencyRecorder and mongodb.Recorder.
func (m *Metrics) ObserveStoreOperation(system, collection, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(system, collection, operation, resultLabel(err)).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimitHits.WithLabelValues(route).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
