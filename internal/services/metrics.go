package services

import (
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sadiqgoni/GreenCycle/internal/models"
)

var (
	appInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "greencycle",
			Subsystem: "app",
			Name:      "info",
			Help:      "Static app info for deployment verification.",
		},
		[]string{"service", "version"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "greencycle",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "greencycle",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "greencycle",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Lifecycle actions attempted, by outcome.",
		},
		[]string{"action", "result"},
	)

	requestsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "greencycle",
			Subsystem: "service_requests",
			Name:      "by_status",
			Help:      "Current number of service requests per status.",
		},
		[]string{"status"},
	)
	pendingPayments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "greencycle",
			Subsystem: "payments",
			Name:      "pending",
			Help:      "Payments awaiting admin confirmation.",
		},
	)

	cronJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "greencycle",
			Subsystem: "cron",
			Name:      "jobs_total",
			Help:      "Total cron job runs.",
		},
		[]string{"job", "result"},
	)
	cronJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "greencycle",
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Cron job duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(
		appInfo,
		httpRequestsTotal, httpRequestDuration,
		transitionsTotal,
		requestsByStatus, pendingPayments,
		cronJobsTotal, cronJobDuration,
	)
}

// Transition results
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

func SetAppInfo(service string) {
	svc := strings.TrimSpace(service)
	if svc == "" {
		svc = "greencycle-api"
	}
	ver := strings.TrimSpace(os.Getenv("APP_VERSION"))
	if ver == "" {
		ver = "dev"
	}
	appInfo.WithLabelValues(svc, ver).Set(1)
}

// ObserveHTTPRequest records one served request. route must be the matched
// route pattern, not the raw path.
func ObserveHTTPRequest(method, route, code string, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func recordTransition(action, result string) {
	transitionsTotal.WithLabelValues(action, result).Inc()
}

func recordCronJob(job string, start time.Time, err error) {
	res := ResultOK
	if err != nil {
		res = ResultError
	}
	cronJobsTotal.WithLabelValues(job, res).Inc()
	cronJobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}

func setStatusGauges(counts map[models.ServiceRequestStatus]int64, pending int64) {
	for _, status := range models.AllServiceRequestStatuses {
		requestsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	pendingPayments.Set(float64(pending))
}
