// Package metrics holds the Prometheus collectors shared across vidhubd.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vidhub"

// Metrics holds all the application metrics
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Backend gateway metrics
	GatewayOperationTotal    *prometheus.CounterVec
	GatewayOperationDuration *prometheus.HistogramVec

	// Upload pipeline metrics
	UploadItemsTotal *prometheus.CounterVec // by final state
	UploadBytesTotal *prometheus.CounterVec // by bucket

	// Event publishing metrics
	EventPublishTotal    *prometheus.CounterVec
	EventPublishDuration *prometheus.HistogramVec

	// Schema validation metrics
	SchemaValidationTotal    *prometheus.CounterVec
	SchemaValidationDuration *prometheus.HistogramVec

	// Scheduled publishing
	ScheduledPublishTotal prometheus.Counter
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process-wide Metrics, creating and registering it on first use.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		GatewayOperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_operations_total",
			Help:      "Total number of backend gateway operations",
		}, []string{"operation", "status"}),

		GatewayOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_operation_duration_seconds",
			Help:      "Backend gateway operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		UploadItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_items_total",
			Help:      "Upload items that reached a terminal state",
		}, []string{"pipeline", "state"}),

		UploadBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes written to object storage",
		}, []string{"bucket"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_total",
			Help:      "Total number of event publish operations",
		}, []string{"event_type", "status"}),

		EventPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_duration_seconds",
			Help:      "Event publish duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type", "status"}),

		SchemaValidationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_validation_total",
			Help:      "Total number of schema validation operations",
		}, []string{"schema", "status"}),

		SchemaValidationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "schema_validation_duration_seconds",
			Help:      "Schema validation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"schema", "status"}),

		ScheduledPublishTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_publish_total",
			Help:      "Videos published by the scheduled-publish job",
		}),
	}

	m.HTTPRequestTotal = registerOrGet(m.HTTPRequestTotal)
	m.HTTPRequestDuration = registerOrGet(m.HTTPRequestDuration)
	m.GatewayOperationTotal = registerOrGet(m.GatewayOperationTotal)
	m.GatewayOperationDuration = registerOrGet(m.GatewayOperationDuration)
	m.UploadItemsTotal = registerOrGet(m.UploadItemsTotal)
	m.UploadBytesTotal = registerOrGet(m.UploadBytesTotal)
	m.EventPublishTotal = registerOrGet(m.EventPublishTotal)
	m.EventPublishDuration = registerOrGet(m.EventPublishDuration)
	m.SchemaValidationTotal = registerOrGet(m.SchemaValidationTotal)
	m.SchemaValidationDuration = registerOrGet(m.SchemaValidationDuration)
	m.ScheduledPublishTotal = registerOrGet(m.ScheduledPublishTotal)

	globalMetrics = m
	return m
}

// registerOrGet registers c with the default registry, returning the existing
// collector when an identical one is already registered.
func registerOrGet[C prometheus.Collector](c C) C {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// Status renders an error as the "status" label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveGateway records one gateway operation.
func (m *Metrics) ObserveGateway(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := Status(err)
	m.GatewayOperationTotal.WithLabelValues(operation, status).Inc()
	m.GatewayOperationDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// ObserveEvent records one event publish.
func (m *Metrics) ObserveEvent(eventType string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := Status(err)
	m.EventPublishTotal.WithLabelValues(eventType, status).Inc()
	m.EventPublishDuration.WithLabelValues(eventType, status).Observe(time.Since(start).Seconds())
}

// ObserveSchema records one schema validation.
func (m *Metrics) ObserveSchema(schema string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := Status(err)
	m.SchemaValidationTotal.WithLabelValues(schema, status).Inc()
	m.SchemaValidationDuration.WithLabelValues(schema, status).Observe(time.Since(start).Seconds())
}
