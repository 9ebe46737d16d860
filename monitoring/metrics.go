package monitoring

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"outcome"},
	)

	settlementDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Time spent confirming a settlement",
			Buckets: prometheus.DefBuckets,
		},
	)

	checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout sessions created per payment provider",
		},
		[]string{"provider", "status"},
	)

	bookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operations_total",
			Help: "Booking operations",
		},
		[]string{"operation", "status"},
	)

	moderations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_moderations_total",
			Help: "Admin moderation actions on tickets",
		},
		[]string{"action"},
	)

	oversells = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_oversell_total",
			Help: "Settlements that found less stock than the booking quantity",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "code"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Settlement outcomes.
const (
	OutcomeSettled          = "settled"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeIncomplete       = "incomplete"
	OutcomeFailed           = "failed"
)

// Monitor records business metrics. The zero value is ready to use.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) TrackSettlement(outcome string, took time.Duration) {
	settlements.WithLabelValues(outcome).Inc()
	settlementDuration.Observe(took.Seconds())
}

func (m *Monitor) TrackCheckout(provider string, err error) {
	checkouts.WithLabelValues(provider, statusLabel(err)).Inc()
}

func (m *Monitor) TrackBooking(operation string, err error) {
	bookings.WithLabelValues(operation, statusLabel(err)).Inc()
}

func (m *Monitor) TrackModeration(action string) {
	moderations.WithLabelValues(action).Inc()
}

func (m *Monitor) TrackOversell() {
	oversells.Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Middleware records request count and latency per matched route pattern.
func Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		start := time.Now()
		err := e.Next()

		route := e.Request.Pattern
		if route == "" {
			route = "unmatched"
		}

		code := e.Status()
		if code == 0 {
			code = http.StatusOK
		}
		if err != nil {
			code = http.StatusInternalServerError
			var apiErr *router.ApiError
			if errors.As(err, &apiErr) {
				code = apiErr.Status
			}
		}

		httpRequests.WithLabelValues(e.Request.Method, route, strconv.Itoa(code)).Inc()
		httpDuration.WithLabelValues(e.Request.Method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
