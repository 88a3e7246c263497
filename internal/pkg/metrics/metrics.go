package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geobubbles",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geobubbles",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Feed metrics
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "feed",
		Name:      "requests_total",
		Help:      "Nearby feed computations by viewer location source",
	}, []string{"location_source"})

	FeedCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geobubbles",
		Subsystem: "feed",
		Name:      "candidates",
		Help:      "Candidate messages considered per feed request",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	FeedCandidatePages = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geobubbles",
		Subsystem: "feed",
		Name:      "candidate_pages",
		Help:      "Candidate query pages read per feed request",
		Buckets:   prometheus.LinearBuckets(1, 1, 8),
	})

	FeedVisible = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geobubbles",
		Subsystem: "feed",
		Name:      "visible",
		Help:      "Messages returned per feed request after visibility filtering",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	GeometryRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "feed",
		Name:      "geometry_rejected_total",
		Help:      "Candidates skipped because their stored location is malformed",
	}, []string{"reason"})

	// Content metrics
	MessagesPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "content",
		Name:      "messages_posted_total",
		Help:      "Messages created by visibility",
	}, []string{"visibility"})

	RepliesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "content",
		Name:      "replies_posted_total",
		Help:      "Replies created",
	})

	LocationUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "content",
		Name:      "location_updates_total",
		Help:      "Viewer location reports by source",
	}, []string{"source"})

	AccountPurges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "content",
		Name:      "account_purges_total",
		Help:      "Account purges by execution mode and outcome",
	}, []string{"mode", "outcome"})

	// WebSocket metrics
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geobubbles",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	WebSocketPushed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "ws",
		Name:      "messages_pushed_total",
		Help:      "Live messages pushed to WebSocket viewers",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geobubbles",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geobubbles",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geobubbles",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geobubbles",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool statistics into the pool gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
