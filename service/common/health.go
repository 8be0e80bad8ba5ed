package common

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"sagekit/session"
)

type HealthCheckArgs struct {
	HealthPort uint `arg:"--health-port,env:HEALTH_PORT" default:"8082"`
}

const pingTimeout = 2 * time.Second

// StartHealthCheckServer serves /live and /ready. The process is ready once
// the ledger and redis of sess, when configured, answer pings.
func StartHealthCheckServer(port uint, sess session.Session) *http.Server {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(1000))
	if conn, ok := sess.Ledger.Get(); ok {
		health.AddReadinessCheck("ledger", healthcheck.DatabasePingCheck(conn.DB.DB, pingTimeout))
	}
	if client, ok := sess.Redis.Get(); ok {
		health.AddReadinessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()
			return client.Ping(ctx)
		})
	}
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: health}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sess.Logger.Error("health check server stopped unexpectedly", zap.Error(err))
		}
	}()
	return srv
}
