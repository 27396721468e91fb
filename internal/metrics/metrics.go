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
	recordsAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landledger_records_appended_total",
		Help: "Total records appended to the ledger.",
	})

	registrationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_registrations_rejected_total",
		Help: "Total certificate registrations rejected by reason.",
	}, []string{"reason"})

	chainLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "landledger_chain_length",
		Help: "Number of records in the ledger, genesis included.",
	})

	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_validations_total",
		Help: "Total whole-chain validations by result.",
	}, []string{"result"})

	validationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "landledger_validation_duration_seconds",
		Help:    "Whole-chain validation duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_lookups_total",
		Help: "Total certificate lookups by result.",
	}, []string{"result"})

	eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_events_published_total",
		Help: "Total registration events published by status.",
	}, []string{"status"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "landledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// Handler returns a Gin handler that serves Prometheus metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func RecordAppend(length int) {
	recordsAppendedTotal.Inc()
	chainLength.Set(float64(length))
}

func SetChainLength(length int) {
	chainLength.Set(float64(length))
}

func RecordRejection(reason string) {
	registrationsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordValidation records the outcome of a whole-chain check.
func RecordValidation(valid bool, length int, took time.Duration) {
	if valid {
		validationsTotal.WithLabelValues("valid").Inc()
	} else {
		validationsTotal.WithLabelValues("corrupted").Inc()
	}
	chainLength.Set(float64(length))
	validationDuration.Observe(took.Seconds())
}

func RecordLookup(found bool) {
	if found {
		lookupsTotal.WithLabelValues("found").Inc()
	} else {
		lookupsTotal.WithLabelValues("not_found").Inc()
	}
}

func RecordEventPublish(success bool) {
	if success {
		eventsPublishedTotal.WithLabelValues("success").Inc()
	} else {
		eventsPublishedTotal.WithLabelValues("failure").Inc()
	}
}
