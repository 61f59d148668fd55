package web

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineStarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "headunit",
		Name:      "engine_starts_total",
		Help:      "Successful engine starts.",
	})
	engineStops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "headunit",
		Name:      "engine_stops_total",
		Help:      "Engine stop requests.",
	})
	keyWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "headunit",
		Name:      "key_writes_total",
		Help:      "Key commands written to the engine pipe.",
	})
	phoneEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "headunit",
		Name:      "phone_events_total",
		Help:      "Phone state changes observed.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "headunit",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// CountPhoneEvent is hooked into the phone manager's subscriber list at
// startup so state changes show up in /metrics.
func CountPhoneEvent() {
	phoneEvents.Inc()
}

// requestMetrics records per-request latency. The route template is used
// rather than the raw path so cardinality stays bounded.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestDuration.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
