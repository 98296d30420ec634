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
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 抽取流水线指标
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_jobs_processed_total",
			Help: "Processing runs by outcome",
		},
		[]string{"result"},
	)

	ExtractionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paper_extraction_duration_seconds",
			Help:    "Latency of the external extraction call",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120},
		},
	)

	QuestionsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_questions_extracted_total",
			Help: "Questions accepted from extraction output",
		},
	)

	QuestionsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_questions_dropped_total",
			Help: "Extraction entries dropped by validation",
		},
	)

	Publications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paper_publications_total",
			Help: "Publish attempts by outcome",
		},
		[]string{"result"},
	)

	JobsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paper_jobs_reaped_total",
			Help: "Jobs failed by the stuck-processing reaper",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(JobsProcessed)
		prometheus.MustRegister(ExtractionDuration)
		prometheus.MustRegister(QuestionsExtracted)
		prometheus.MustRegister(QuestionsDropped)
		prometheus.MustRegister(Publications)
		prometheus.MustRegister(JobsReaped)
	})
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
