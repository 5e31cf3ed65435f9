package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 管线指标
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_predictions_total",
			Help: "Total number of student predictions served, by risk level",
		},
		[]string{"risk_level"},
	)

	RowsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_rows_rejected_total",
			Help: "Total number of raw rows rejected by validation",
		},
	)

	InsightCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_cache_requests_total",
			Help: "Course insight cache lookups, by result",
		},
		[]string{"result"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(RowsRejectedTotal)
	prometheus.MustRegister(InsightCacheHits)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
