package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "obrafin"

var (
	// RequestCounter counts all HTTP requests by route template
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// VersionsPublished counts budget versions frozen by a publish.
	VersionsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "budget_versions_published_total",
		Help:      "Total number of published budget versions",
	})

	// PublishRejected counts publish attempts rejected before a version was written.
	PublishRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "budget_publish_rejected_total",
		Help:      "Publish attempts rejected by reason",
	}, []string{"reason"})

	// ReceiptsReconciled counts receipt reconciliations by outcome: ok, rejected, failed, rolled_back, partial.
	ReceiptsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipts_reconciled_total",
		Help:      "Receipt reconciliations by outcome",
	}, []string{"outcome"})

	// Compensations counts compensating actions by saga step and result.
	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "saga_compensations_total",
		Help:      "Compensating actions run by saga step and result",
	}, []string{"step", "result"})

	EventsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_forwarded_total",
		Help:      "Domain events forwarded to the message broker by type and result",
	}, []string{"type", "result"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request count and duration labelled with the mux route template, so
// ids in the path do not explode the label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		RequestDurationHistogram.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
