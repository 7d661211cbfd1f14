package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connected_sessions",
		Help: "Number of currently registered sessions",
	})

	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_commands_total",
		Help: "Total commands processed by verb",
	}, []string{"verb"})

	commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_command_duration_seconds",
		Help:    "Time to dispatch each command verb",
		Buckets: prometheus.DefBuckets,
	}, []string{"verb"})
)

func init() {
	prometheus.MustRegister(connectedSessions)
	prometheus.MustRegister(commandsTotal)
	prometheus.MustRegister(commandDuration)
}
