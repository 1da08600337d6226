package helpdesk

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otfcs",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total help-desk HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "otfcs",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Help-desk HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	sessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "otfcs",
			Subsystem: "helpdesk",
			Name:      "sessions_created_total",
			Help:      "Sessions allocated for service requests.",
		},
	)
	queueEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otfcs",
			Subsystem: "helpdesk",
			Name:      "queue_events_total",
			Help:      "Wait queue joins, removals and pickups.",
		},
		[]string{"event"},
	)
	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "otfcs",
			Subsystem: "helpdesk",
			Name:      "queue_length",
			Help:      "Callers currently waiting.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, sessionsCreated, queueEvents, queueLength)
	})
}

// RecordQueueEvent counts event and refreshes the queue length gauge.
func RecordQueueEvent(event string, length int) {
	RegisterMetrics()
	queueEvents.WithLabelValues(event).Inc()
	queueLength.Set(float64(length))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request count and latency under route.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	RegisterMetrics()
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		status := strconv.Itoa(rec.status)
		httpRequests.WithLabelValues(r.Method, route, status).Inc()
		httpDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	}
}
