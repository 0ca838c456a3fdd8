package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpiredTotal,
		subscriptionsExtendedTotal,
		remindersSentTotal,
	)
}

var (
	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscriptions swept to expired.",
		},
	)

	subscriptionsExtendedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_extended_total",
			Help: "Subscription end dates extended by paid charges.",
		},
	)

	remindersSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Expiry reminder notifications sent, labeled by horizon in days.",
		},
		[]string{"horizon"},
	)
)

func IncSubscriptionsExpired(n int) {
	subscriptionsExpiredTotal.Add(float64(n))
}

func IncSubscriptionExtended() { subscriptionsExtendedTotal.Inc() }

func IncReminderSent(horizon string) {
	remindersSentTotal.WithLabelValues(norm(horizon)).Inc()
}
