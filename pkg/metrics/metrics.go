package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_http_requests_total",
		Help: "HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// Snapshots counts classified mood snapshots by emotion and source.
	Snapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_mood_snapshots_total",
		Help: "Mood snapshots processed by emotion and source.",
	}, []string{"emotion", "source"})

	// JobsPublished counts transcription jobs put on the channel.
	JobsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_transcription_jobs_published_total",
		Help: "Transcription jobs published to the job channel.",
	})

	// JobsProcessed counts worker job completions by outcome.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_transcription_jobs_processed_total",
		Help: "Transcription jobs processed by the worker, by outcome.",
	}, []string{"outcome"})
)

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
