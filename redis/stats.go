package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var poolStats = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "sagekit_redis_pool",
	Help: "Connection pool state of the workflow store redis client",
}, []string{"client", "metric"})

// RecordConnectionStats exports the pool stats of c once under name.
func RecordConnectionStats(name string, c Client) {
	stats := c.client.PoolStats()
	poolStats.WithLabelValues(name, "hits").Set(float64(stats.Hits))
	poolStats.WithLabelValues(name, "misses").Set(float64(stats.Misses))
	poolStats.WithLabelValues(name, "timeouts").Set(float64(stats.Timeouts))
	poolStats.WithLabelValues(name, "stale_conns").Set(float64(stats.StaleConns))
	poolStats.WithLabelValues(name, "total_conns").Set(float64(stats.TotalConns))
	poolStats.WithLabelValues(name, "idle_conns").Set(float64(stats.IdleConns))
}
