package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all application metrics implementing the golden 4 signals:
// - Latency: How long requests/waits take
// - Traffic: Request/query throughput
// - Errors: Rate of failures
// - Saturation: Resource utilization (concurrent waits, notifier queue)
type Metrics struct {
	meter metric.Meter

	// HTTP metrics (Latency, Traffic, Errors)
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Scheduler metrics (Traffic, Errors)
	SchedulerQueriesTotal metric.Int64Counter
	SchedulerCancelsTotal metric.Int64Counter
	SchedulerErrorsTotal  metric.Int64Counter

	// Wait metrics (Latency, Saturation)
	WaitDuration metric.Float64Histogram
	WaitsActive  metric.Int64UpDownCounter
	WaitTimeouts metric.Int64Counter

	// Cleanup metrics (Traffic, Errors)
	CleanupsTotal      metric.Int64Counter
	CleanupErrorsTotal metric.Int64Counter

	// Notifier metrics (Latency, Traffic, Errors, Saturation)
	NotifierDuration  metric.Float64Histogram
	NotifierDelivered metric.Int64Counter
	NotifierFailed    metric.Int64Counter
	NotifierDropped   metric.Int64Counter
	NotifierRequeued  metric.Int64Counter
	NotifierQueueSize metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("slurmjobs")
	m := &Metrics{meter: meter}

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Scheduler metrics
	m.SchedulerQueriesTotal, err = meter.Int64Counter(
		"scheduler_queries_total",
		metric.WithDescription("Total number of status queries issued to the scheduler"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SchedulerCancelsTotal, err = meter.Int64Counter(
		"scheduler_cancels_total",
		metric.WithDescription("Total number of cancel requests issued to the scheduler"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SchedulerErrorsTotal, err = meter.Int64Counter(
		"scheduler_errors_total",
		metric.WithDescription("Total number of failed scheduler invocations"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Wait metrics
	m.WaitDuration, err = meter.Float64Histogram(
		"wait_duration_seconds",
		metric.WithDescription("Time spent polling until a job reached terminal state"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.WaitsActive, err = meter.Int64UpDownCounter(
		"waits_active",
		metric.WithDescription("Number of waits currently polling the scheduler (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.WaitTimeouts, err = meter.Int64Counter(
		"wait_timeouts_total",
		metric.WithDescription("Total number of waits that exceeded their deadline"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Cleanup metrics
	m.CleanupsTotal, err = meter.Int64Counter(
		"cleanups_total",
		metric.WithDescription("Total number of working directories removed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CleanupErrorsTotal, err = meter.Int64Counter(
		"cleanup_errors_total",
		metric.WithDescription("Total number of failed cleanup operations"),
	)
	if err != nil {
		return nil, nil, err
	}

	// Notifier metrics
	m.NotifierDuration, err = meter.Float64Histogram(
		"notifier_duration_seconds",
		metric.WithDescription("Callback delivery latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierDelivered, err = meter.Int64Counter(
		"notifier_delivered_total",
		metric.WithDescription("Total events successfully delivered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierFailed, err = meter.Int64Counter(
		"notifier_failed_total",
		metric.WithDescription("Total events failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierDropped, err = meter.Int64Counter(
		"notifier_dropped_total",
		metric.WithDescription("Total events dropped (buffer full or max requeues)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierRequeued, err = meter.Int64Counter(
		"notifier_requeued_total",
		metric.WithDescription("Total events requeued due to open circuit"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.NotifierQueueSize, err = meter.Int64Gauge(
		"notifier_queue_size",
		metric.WithDescription("Current number of events in notifier queue (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		pathAttr(path),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordSchedulerQuery records a status query against the scheduler.
func (m *Metrics) RecordSchedulerQuery(ctx context.Context, err error) {
	m.SchedulerQueriesTotal.Add(ctx, 1)
	if err != nil {
		m.SchedulerErrorsTotal.Add(ctx, 1, metric.WithAttributes(opAttr("queryStatus")))
	}
}

// RecordSchedulerCancel records a cancel request against the scheduler.
func (m *Metrics) RecordSchedulerCancel(ctx context.Context, err error) {
	m.SchedulerCancelsTotal.Add(ctx, 1)
	if err != nil {
		m.SchedulerErrorsTotal.Add(ctx, 1, metric.WithAttributes(opAttr("cancel")))
	}
}

// RecordWaitStarted records a wait beginning to poll.
func (m *Metrics) RecordWaitStarted(ctx context.Context) {
	m.WaitsActive.Add(ctx, 1)
}

// RecordWaitFinished records a wait ending, however it ended.
func (m *Metrics) RecordWaitFinished(ctx context.Context, durationSeconds float64, timedOut bool) {
	m.WaitsActive.Add(ctx, -1)
	m.WaitDuration.Record(ctx, durationSeconds, metric.WithAttributes(timedOutAttr(timedOut)))
	if timedOut {
		m.WaitTimeouts.Add(ctx, 1)
	}
}

// RecordCleanup records a cleanup attempt.
func (m *Metrics) RecordCleanup(ctx context.Context, err error) {
	if err != nil {
		m.CleanupErrorsTotal.Add(ctx, 1)
		return
	}
	m.CleanupsTotal.Add(ctx, 1)
}

// RecordNotifierDelivered records a successful event delivery with its duration.
func (m *Metrics) RecordNotifierDelivered(ctx context.Context, durationSeconds float64) {
	m.NotifierDelivered.Add(ctx, 1)
	m.NotifierDuration.Record(ctx, durationSeconds)
}

// RecordNotifierFailed records a failed event delivery.
func (m *Metrics) RecordNotifierFailed(ctx context.Context) {
	m.NotifierFailed.Add(ctx, 1)
}

// RecordNotifierDropped records a dropped event.
func (m *Metrics) RecordNotifierDropped(ctx context.Context) {
	m.NotifierDropped.Add(ctx, 1)
}

// RecordNotifierRequeued records a requeued event.
func (m *Metrics) RecordNotifierRequeued(ctx context.Context) {
	m.NotifierRequeued.Add(ctx, 1)
}

// RecordNotifierQueueSize records the current queue size.
func (m *Metrics) RecordNotifierQueueSize(ctx context.Context, size int64) {
	m.NotifierQueueSize.Record(ctx, size)
}
