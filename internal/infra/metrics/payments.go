package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		webhookCallbacksTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment transitions by resulting status (completed/failed/refunded).",
		},
		[]string{"status"},
	)

	webhookCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_callbacks_total",
			Help: "Gateway callback outcomes after signature verification.",
		},
		[]string{"result"}, // 'completed', 'failed', 'replayed', 'no_pending', 'conflict', 'user_unresolved', 'bad_signature'
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func IncWebhook(result string) {
	webhookCallbacksTotal.WithLabelValues(norm(result)).Inc()
}
