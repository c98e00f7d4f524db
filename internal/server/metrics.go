package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"day2do/internal/planner"
	"day2do/internal/stats"
)

type metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	inFlightRequests prometheus.Gauge
}

// newMetrics registers HTTP and planner collectors on reg.
func newMetrics(reg prometheus.Registerer, store *planner.Store) *metrics {
	factory := promauto.With(reg)

	m := &metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "day2do_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "day2do_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		),
		inFlightRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "day2do_http_in_flight_requests",
				Help: "Current number of in-flight HTTP requests",
			},
		),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "day2do_tasks",
		Help: "Number of tasks in the plan",
	}, func() float64 {
		return float64(len(store.Tasks()))
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "day2do_tasks_completed",
		Help: "Number of completed tasks in the plan",
	}, func() float64 {
		return float64(stats.ComputeStats(store.Tasks()).CompletedTasks)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "day2do_unsaved_changes",
		Help: "1 when memory holds changes that are not yet persisted",
	}, func() float64 {
		if store.PersistStatus().Unsaved {
			return 1
		}
		return 0
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "day2do_persist_failures_total",
		Help: "Failed snapshot write attempts",
	}, func() float64 {
		return float64(store.PersistStatus().Failures)
	})

	return m
}

// middleware records request counts and latency per route template.
func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.inFlightRequests.Inc()
		defer m.inFlightRequests.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requestsTotal.WithLabelValues(method, route, status).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
