package httpapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// httpMetrics records request counts and latency. Route templates (not
// raw URIs) label the series, so parameterized paths stay low-cardinality.
type httpMetrics struct {
	requestsTotal *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec
}

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "distilld_http_requests_total",
		Help: "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	requestDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "distilld_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds by method and route.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	}, []string{"method", "route"})
)

func newMetrics() *httpMetrics {
	return &httpMetrics{
		requestsTotal: requestsTotal,
		requestDur:    requestDur,
	}
}

func (m *httpMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "/"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			m.requestsTotal.WithLabelValues(method, route, status).Inc()
			m.requestDur.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// metricsHandler exposes the Prometheus scrape endpoint.
func metricsHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
