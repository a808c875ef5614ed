package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ordersTotal,
		ordersAccessExpiredTotal,
		ordersStaleDeletedTotal,
	)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order operations by kind (checkout).",
		},
		[]string{"kind"},
	)

	ordersAccessExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_access_expired_total",
			Help: "Orders whose access window was swept to expired.",
		},
	)

	ordersStaleDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_stale_deleted_total",
			Help: "Abandoned pending orders removed by the janitor.",
		},
	)
)

func IncOrder(kind string) {
	ordersTotal.WithLabelValues(norm(kind)).Inc()
}

func AddOrdersExpired(n int) {
	ordersAccessExpiredTotal.Add(float64(n))
}

func AddStaleOrdersDeleted(n int) {
	ordersStaleDeletedTotal.Add(float64(n))
}
