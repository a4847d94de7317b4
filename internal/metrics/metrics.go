// Package metrics exposes Prometheus instrumentation for the ledger, the
// reward trigger and the HTTP layer. All methods are safe on a nil *Metrics
// so components can be built without instrumentation in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recycling"

// Redemption outcomes.
const (
	OutcomeRedeemed        = "redeemed"
	OutcomeAlreadyRedeemed = "already_redeemed"
	OutcomeNotFound        = "not_found"
	OutcomeMalformed       = "malformed"
	OutcomeError           = "error"
)

// Metrics holds the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	tokensMinted   *prometheus.CounterVec
	redemptions    *prometheus.CounterVec
	pointsCredited prometheus.Counter
	couponsIssued  prometheus.Counter
	notifications  *prometheus.CounterVec
	throttled      *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokensMinted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "tokens_minted_total",
			Help:      "Tokens minted segmented by category.",
		}, []string{"category"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "redemptions_total",
			Help:      "Redeem attempts segmented by outcome.",
		}, []string{"outcome"}),
		pointsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "points_credited_total",
			Help:      "Points credited to users by committed redemptions.",
		}),
		couponsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "coupons_issued_total",
			Help:      "Coupons issued for reward threshold crossings.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reward",
			Name:      "notifications_total",
			Help:      "Collection notifications segmented by outcome.",
		}, []string{"outcome"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "throttled_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests segmented by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for HTTP handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokensMinted,
		m.redemptions,
		m.pointsCredited,
		m.couponsIssued,
		m.notifications,
		m.throttled,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TokensMinted records n newly minted tokens.
func (m *Metrics) TokensMinted(category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensMinted.WithLabelValues(category).Add(float64(n))
}

// Redemption records the outcome of a redeem attempt.
func (m *Metrics) Redemption(outcome string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(outcome).Inc()
}

// PointsCredited records points added to a user balance.
func (m *Metrics) PointsCredited(points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsCredited.Add(float64(points))
}

// CouponIssued records a coupon issued for a threshold crossing.
func (m *Metrics) CouponIssued() {
	if m == nil {
		return
	}
	m.couponsIssued.Inc()
}

// Notification records a collection notification attempt.
func (m *Metrics) Notification(delivered bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !delivered {
		outcome = "failed"
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// Throttled records a request rejected by the rate limiter.
func (m *Metrics) Throttled(route string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(route).Inc()
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		// Label values outlive the request; fasthttp reuses the buffers
		// behind Method and an unmatched route's path.
		route := utils.CopyString(c.Route().Path)
		method := utils.CopyString(c.Method())
		m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
		m.httpLatency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
