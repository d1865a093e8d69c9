package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_webhook_requests_total",
		Help: "Inbound conversation turns by channel and outcome",
	}, []string{"channel", "outcome"}) // outcome=ok|bad_request|panic

	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_state_transitions_total",
		Help: "Conversation state transitions",
	}, []string{"from", "to"})

	storeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_record_store_requests_total",
		Help: "Record store calls by backend, operation and outcome",
	}, []string{"backend", "operation", "outcome"}) // outcome=success|unavailable|format

	storeRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "helpdesk_record_store_request_duration_seconds",
		Help:    "Record store call latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
	}, []string{"backend", "operation"})

	ticketsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_tickets_created_total",
		Help: "Tickets appended to the record store by kind and outcome",
	}, []string{"kind", "outcome"})

	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_registrations_total",
		Help: "Employee self-registrations by outcome",
	}, []string{"outcome"})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "helpdesk_sessions_active",
		Help: "Sessions held by the session store after the last sweep",
	})

	sessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_sessions_expired_total",
		Help: "Sessions removed by the TTL sweeper",
	})

	sessionsEndedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_sessions_ended_total",
		Help: "Sessions ended explicitly by the user",
	})
)

// IncWebhookRequest counts one inbound turn.
func IncWebhookRequest(channel, outcome string) {
	webhookRequestsTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordStateTransition counts a state change (including self transitions).
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveStoreRequest records outcome and latency of a record store call.
func ObserveStoreRequest(backend, operation, outcome string, elapsed time.Duration) {
	storeRequestsTotal.WithLabelValues(backend, operation, outcome).Inc()
	storeRequestDuration.WithLabelValues(backend, operation).Observe(elapsed.Seconds())
}

// IncTicketCreated counts a ticket append attempt.
func IncTicketCreated(kind, outcome string) {
	ticketsCreatedTotal.WithLabelValues(kind, outcome).Inc()
}

// IncRegistration counts a registration append attempt.
func IncRegistration(outcome string) {
	registrationsTotal.WithLabelValues(outcome).Inc()
}

// SetSessionsActive publishes the current session count.
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// AddSessionsExpired counts sessions dropped by the sweeper.
func AddSessionsExpired(n int) {
	if n > 0 {
		sessionsExpiredTotal.Add(float64(n))
	}
}

// IncSessionEnded counts an explicit exit.
func IncSessionEnded() {
	sessionsEndedTotal.Inc()
}
