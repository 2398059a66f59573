package http

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fortressd",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method, path, and status code",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fortressd",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds by method and path",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// metricsMiddleware records per-request counters and latency. The route
// template is used as the path label to keep cardinality bounded.
func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			requestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
			requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
