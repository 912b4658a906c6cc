package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// emailsSent counts outbound emails.
	// Labels:
	// - template: template name, e.g. "verification_request"
	// - status:   "sent" or "failed"
	emailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hoursrelay",
			Subsystem: "email",
			Name:      "sent_total",
			Help:      "Number of outbound emails by template and result",
		},
		[]string{"template", "status"},
	)

	// redemptions counts verify-hours link redemptions.
	// Labels:
	// - action: "approve", "deny" or "unknown"
	// - result: "authorized", "rejected", "replayed" or "error"
	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hoursrelay",
			Subsystem: "verify",
			Name:      "redemptions_total",
			Help:      "Number of action link redemptions by result",
		},
		[]string{"action", "result"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hoursrelay",
			Subsystem: "http",
			Name:      "rate_limit_exceeded_total",
			Help:      "Number of requests rejected due to rate limiting (HTTP 429)",
		},
		[]string{"endpoint"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hoursrelay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

func IncEmail(template string, ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	emailsSent.WithLabelValues(template, status).Inc()
}

func IncRedemption(action, result string) {
	if action != "approve" && action != "deny" {
		action = "unknown"
	}
	redemptions.WithLabelValues(action, result).Inc()
}

func IncRateLimited(endpoint string) {
	rateLimited.WithLabelValues(endpoint).Inc()
}

func ObserveHTTP(route, method, status string, seconds float64) {
	httpDuration.WithLabelValues(route, method, status).Observe(seconds)
}
