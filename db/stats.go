package db

import (
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ledgerPool = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "sagekit_ledger_pool",
	Help: "Connection pool state of the job ledger database",
}, []string{"metric"})

// RecordConnectionStats exports the pool stats of db once. Wait and close
// counts are lifetime totals; rates come from deltas downstream.
func RecordConnectionStats(db *sqlx.DB) {
	stats := db.Stats()
	for metric, v := range map[string]float64{
		"open":                 float64(stats.OpenConnections),
		"in_use":               float64(stats.InUse),
		"idle":                 float64(stats.Idle),
		"wait_count":           float64(stats.WaitCount),
		"wait_ms":              float64(stats.WaitDuration.Milliseconds()),
		"max_idle_closed":      float64(stats.MaxIdleClosed),
		"max_idle_time_closed": float64(stats.MaxIdleTimeClosed),
		"max_lifetime_closed":  float64(stats.MaxLifetimeClosed),
	} {
		ledgerPool.WithLabelValues(metric).Set(v)
	}
}
