package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	// Registry holds the gateway Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mosaic",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mosaic",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "graphql",
			Name:      "operations_total",
			Help:      "Total number of executed graphql operations.",
		},
		[]string{"operation", "outcome"},
	)

	delegatedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Total number of requests delegated to remote services.",
		},
		[]string{"endpoint", "outcome"},
	)

	delegatedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mosaic",
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests delegated to remote services.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"endpoint"},
	)

	storeQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mosaic",
			Subsystem: "store",
			Name:      "queries_total",
			Help:      "Total number of local store queries.",
		},
		[]string{"op", "outcome"},
	)

	storeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mosaic",
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Duration of local store queries.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"op"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		operations,
		delegatedRequests,
		delegatedDuration,
		storeQueries,
		storeDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// RecordOperation counts an executed graphql operation.
func RecordOperation(operation string, failed bool) {
	o := OutcomeSuccess
	if failed {
		o = OutcomeError
	}
	operations.WithLabelValues(operation, o).Inc()
}

// ObserveDelegatedRequest records a single http round trip to a remote service.
func ObserveDelegatedRequest(endpoint string, err error, duration time.Duration) {
	delegatedRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	delegatedDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveStoreQuery records a single query of the local store.
func ObserveStoreQuery(op string, err error, duration time.Duration) {
	storeQueries.WithLabelValues(op, outcome(err)).Inc()
	storeDuration.WithLabelValues(op).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
