package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the coupling collectors.
	Registry = prometheus.NewRegistry()

	Syncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dgcoupling",
			Subsystem: "channel",
			Name:      "syncs_total",
			Help:      "Total number of exchange channel synchronizations.",
		},
		[]string{"coupling", "direction"},
	)

	Transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dgcoupling",
			Subsystem: "channel",
			Name:      "transfers_total",
			Help:      "Total number of send and receive operations.",
		},
		[]string{"coupling", "direction"},
	)

	Values = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dgcoupling",
			Subsystem: "channel",
			Name:      "values_total",
			Help:      "Total number of field values moved through channels.",
		},
		[]string{"coupling", "direction"},
	)

	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dgcoupling",
			Subsystem: "channel",
			Name:      "sync_duration_seconds",
			Help:      "Duration of exchange channel synchronizations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"coupling", "direction"},
	)

	Sessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dgcoupling",
			Subsystem: "registry",
			Name:      "sessions",
			Help:      "Current number of live coupling sessions.",
		},
	)
)

func init() {
	Registry.MustRegister(Syncs, Transfers, Values, SyncDuration, Sessions)
}

// Handler exposes the coupling metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSync records one synchronization of a channel.
func RecordSync(coupling, direction string, duration time.Duration) {
	Syncs.WithLabelValues(coupling, direction).Inc()
	SyncDuration.WithLabelValues(coupling, direction).Observe(duration.Seconds())
}

// RecordTransfer records one send or receive of n values.
func RecordTransfer(coupling, direction string, n int) {
	Transfers.WithLabelValues(coupling, direction).Inc()
	Values.WithLabelValues(coupling, direction).Add(float64(n))
}
