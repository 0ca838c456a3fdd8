package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookRetriesTotal,
		webhookExhaustedGauge,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook events by result (received/duplicate/malformed/processed/failed/unresolved).",
		},
		[]string{"result"},
	)

	webhookRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_retries_total",
			Help: "Scheduler-driven reconciliation retries.",
		},
	)

	webhookExhaustedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhook_events_exhausted",
			Help: "Events that burned the retry budget and await operator review.",
		},
	)
)

func IncWebhookEvent(result string) {
	webhookEventsTotal.WithLabelValues(norm(result)).Inc()
}

func IncWebhookRetry() { webhookRetriesTotal.Inc() }

func SetWebhookExhausted(n int) { webhookExhaustedGauge.Set(float64(n)) }
