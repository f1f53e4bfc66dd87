package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	SyncRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitsync_sync_runs_total",
		Help: "Total number of per-client sync invocations.",
	})
	SyncFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitsync_sync_failures_total",
		Help: "Total number of per-client sync invocations that failed.",
	})
	RecordsIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitsync_records_ingested_total",
		Help: "Total number of metric records durably persisted.",
	})
	TokenRefreshSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitsync_token_refresh_success_total",
		Help: "Total number of successful token refreshes.",
	})
	TokenRefreshFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitsync_token_refresh_failure_total",
		Help: "Total number of failed token refreshes.",
	})
	TicksDispatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitsync_ticks_dispatched_total",
		Help: "Total number of scheduler ticks mapped to an action.",
	})
	RegisteredClientsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fitsync_registered_clients",
		Help: "Number of registered clients at the last sweep.",
	})
)

// Register registers all fitsync metrics with reg. It should be called once
// at application startup; a nil registerer skips registration, which the
// tests rely on.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	collectors := []prometheus.Collector{
		SyncRunsTotal,
		SyncFailuresTotal,
		RecordsIngestedTotal,
		TokenRefreshSuccessTotal,
		TokenRefreshFailureTotal,
		TicksDispatchedTotal,
		RegisteredClientsGauge,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register fitsync metric")
		}
	}
}
