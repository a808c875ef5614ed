package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		suspensionsTotal,
		nudgesTotal,
		pausesTotal,
		resumesTotal,
	)
}

var (
	suspensionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standing_suspensions_total",
			Help: "Account-standing transitions (suspended/reactivated/error).",
		},
		[]string{"result"},
	)

	nudgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standing_nudges_total",
			Help: "Motivational reminders by delivery result.",
		},
		[]string{"result"}, // 'sent', 'error'
	)

	pausesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pauses_total",
			Help: "Pause windows opened, by kind.",
		},
		[]string{"kind"}, // 'voluntary'
	)

	resumesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resumes_total",
			Help: "Pause windows closed, by trigger.",
		},
		[]string{"trigger"}, // 'manual', 'auto', 'error'
	)
)

func IncSuspension(result string) {
	suspensionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncNudge(result string) {
	nudgesTotal.WithLabelValues(norm(result)).Inc()
}

func IncPause(kind string) {
	pausesTotal.WithLabelValues(norm(kind)).Inc()
}

func IncResume(trigger string) {
	resumesTotal.WithLabelValues(norm(trigger)).Inc()
}
