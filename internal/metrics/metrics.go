// Package metrics exposes circulation and moderation counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"library-circulation-backend/internal/domain"
)

type MetricsCollector interface {
	RecordOperation(operation string, err error, duration time.Duration)
	RecordHTTPStatus(route string, statusCode int)
	RecordDispatch(outcome string)
}

type Collector struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	httpStatus *prometheus.CounterVec
	dispatched *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_operations_total",
			Help: "Engine operations by outcome",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "library_operation_duration_seconds",
			Help:    "Engine operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_http_responses_total",
			Help: "HTTP responses by route and status code",
		}, []string{"route", "status_code"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_notifications_dispatched_total",
			Help: "Outbox notifications handed to the mail provider",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.operations,
		c.latency,
		c.httpStatus,
		c.dispatched,
	)

	return c
}

func (c *Collector) RecordOperation(operation string, err error, duration time.Duration) {
	c.operations.WithLabelValues(operation, Outcome(err)).Inc()
	c.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordHTTPStatus(route string, statusCode int) {
	c.httpStatus.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordDispatch(outcome string) {
	c.dispatched.WithLabelValues(outcome).Inc()
}

// Outcome labels err by its business code, "ok" for nil and "error" for faults.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return strings.ToLower(de.Code)
	}
	return "error"
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOperation(string, error, time.Duration) {}
func (Nop) RecordHTTPStatus(string, int)                 {}
func (Nop) RecordDispatch(string)                        {}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
