package monitoring

import (
	"strconv"
	"sync"
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
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	FormsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forms_created_total",
			Help: "Forms created, by type",
		},
		[]string{"type"},
	)

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Accepted submissions, by form type",
		},
		[]string{"type"},
	)

	DuplicateSubmissions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_submissions_rejected_duplicate_total",
			Help: "Submissions rejected because the user already answered",
		},
	)

	ScorePercentage = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_score_percentage",
			Help:    "Distribution of quiz submission percentages",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	UploadFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_upload_failures_total",
			Help: "Failed uploads, by folder",
		},
		[]string{"folder"},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			FormsCreated,
			SubmissionsTotal,
			DuplicateSubmissions,
			ScorePercentage,
			UploadFailures,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
