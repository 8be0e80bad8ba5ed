package timer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fnDuration = promauto.NewSummaryVec(prometheus.SummaryOpts{
	Name: "sagekit_fn_duration_seconds",
	Help: "Duration of platform calls and workflow tasks",
	Objectives: map[float64]float64{
		0.50: 0.05,
		0.90: 0.05,
		0.99: 0.01,
	},
}, []string{"function_name"})

type Timer struct {
	timer *prometheus.Timer
}

func (t Timer) Stop() {
	t.timer.ObserveDuration()
}

// Start begins timing funcName, usually as `defer timer.Start("x").Stop()`.
func Start(funcName string) Timer {
	return Timer{
		timer: prometheus.NewTimer(fnDuration.WithLabelValues(funcName)),
	}
}
