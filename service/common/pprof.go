package common

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"go.uber.org/zap"
)

type PprofArgs struct {
	PprofPort uint `arg:"--pprof-port,env:PPROF_PORT,help:serve pprof endpoints when non-zero"`
}

// StartPprofServer serves the net/http/pprof handlers registered on the
// default mux. Ref: https://pkg.go.dev/net/http/pprof
func StartPprofServer(port uint, logger *zap.Logger) {
	if port == 0 {
		return
	}
	go func() {
		logger.Info("pprof server stopped", zap.Error(http.ListenAndServe(fmt.Sprintf(":%d", port), nil)))
	}()
}
