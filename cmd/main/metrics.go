package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whiterabbit_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"code", "route"})
	httpRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whiterabbit_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	llmTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "whiterabbit_llm_tokens",
		Help:    "Number of generated tokens per completion choice",
		Buckets: prometheus.LinearBuckets(0, 50, 20),
	}, []string{"route"})
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whiterabbit_generations_total",
		Help: "Total number of generated choices by generator and finish reason",
	}, []string{"source", "finish_reason"})
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency under a fixed route label.
func instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(strconv.Itoa(rec.status), route).Inc()
		httpRequestDurationSeconds.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
