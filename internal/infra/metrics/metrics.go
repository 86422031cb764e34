package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors, registered on a private
// registry so tests can build as many instances as they need.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SignaturesRecorded  prometheus.Counter
	DocumentsCompleted  prometheus.Counter
	Verifications       *prometheus.CounterVec
	AnchorAttempts      *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sealtrack_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sealtrack_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		SignaturesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealtrack_signatures_recorded_total",
			Help: "Signatures durably recorded",
		}),
		DocumentsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sealtrack_documents_completed_total",
			Help: "Documents that reached the completed state",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sealtrack_verifications_total",
			Help: "Ledger verifications by outcome",
		}, []string{"status"}),
		AnchorAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sealtrack_anchor_attempts_total",
			Help: "Anchoring attempts by provider, status and error code",
		}, []string{"provider", "status", "code"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sealtrack_notifications_total",
			Help: "Owner notifications by delivery result",
		}, []string{"result"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSignature(completed bool) {
	m.SignaturesRecorded.Inc()
	if completed {
		m.DocumentsCompleted.Inc()
	}
}

func (m *Metrics) ObserveVerification(status string) {
	m.Verifications.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveAnchor(provider, status, code string) {
	m.AnchorAttempts.WithLabelValues(provider, status, code).Inc()
}

func (m *Metrics) ObserveNotification(delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	m.Notifications.WithLabelValues(result).Inc()
}
