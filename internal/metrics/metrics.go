package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	TunnelsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunnelwatch_tunnels",
			Help: "Tunnels seen by the last status query, by status",
		},
		[]string{"status"},
	)

	FleetMemoryMB = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tunnelwatch_fleet_memory_mb",
			Help: "Total memory used by the fleet in megabytes",
		},
	)

	StatusQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunnelwatch_status_query_duration_seconds",
			Help:    "Duration of status and health queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// Probe metrics
	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tunnelwatch_probe_duration_seconds",
			Help:    "Exit-point probe duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunnelwatch_probe_failures_total",
			Help: "Exit-point probes that degraded to Unknown, by stage",
		},
		[]string{"stage"},
	)

	EntrypointCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tunnelwatch_entrypoint_cache_entries",
			Help: "Entrypoint facts currently cached",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunnelwatch_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(TunnelsTotal)
	prometheus.MustRegister(FleetMemoryMB)
	prometheus.MustRegister(StatusQueryDuration)
	prometheus.MustRegister(ProbeDuration)
	prometheus.MustRegister(ProbeFailures)
	prometheus.MustRegister(EntrypointCacheEntries)
	prometheus.MustRegister(APIRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
