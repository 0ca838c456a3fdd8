package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		chargesTotal,
		chargesRevenueTotal,
		gatewayCallsTotal,
	)
}

var (
	chargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charges_total",
			Help: "Charge transitions by status (created/pending/paid/cancelled/expired).",
		},
		[]string{"status"},
	)

	chargesRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charges_revenue_total",
			Help: "Total monetary value of paid charges in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Outbound payment gateway calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
)

func IncCharge(status string) {
	chargesTotal.WithLabelValues(norm(status)).Inc()
}

func AddChargeRevenue(currency string, amount int64) {
	chargesRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncGatewayCall(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayCallsTotal.WithLabelValues(norm(op), outcome).Inc()
}
