package main

import (
	"context"
	"log"
	"time"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"sagekit/lib/timer"
	"sagekit/service/common"
	"sagekit/session"
	"sagekit/workflow"
)

func main() {
	var flags struct {
		session.SessionArgs
		common.PrometheusArgs
		common.HealthCheckArgs
		common.PprofArgs
		DataDir    string        `arg:"--data-dir,env:DATA_DIR,help:local directory uploaded as training data" default:"data"`
		ScriptDir  string        `arg:"--script-dir,env:SCRIPT_DIR,help:directory holding the training script" default:"scripts"`
		EntryPoint string        `arg:"--entry-point,env:ENTRY_POINT" default:"tf_mnist.py"`
		RunID      string        `arg:"--run-id,env:RUN_ID,help:reuse to resume a run from its stored values"`
		StoreTTL   time.Duration `arg:"--store-ttl,env:STORE_TTL" default:"24h"`
		Retries    int           `arg:"--retries" default:"3"`
		RetryDelay time.Duration `arg:"--retry-delay" default:"1m"`
	}
	arg.MustParse(&flags)

	sess, err := session.CreateFromArgs(&flags.SessionArgs)
	if err != nil {
		log.Fatalf("Failed to setup session: %v", err)
	}
	defer sess.Close()
	common.StartPromMetricsServer(flags.MetricsPort, sess.Logger)
	common.StartHealthCheckServer(flags.HealthPort, sess)
	common.StartPprofServer(flags.PprofPort, sess.Logger)

	var store workflow.Store = workflow.NewMemoryStore()
	if client, ok := sess.Redis.Get(); ok {
		store = workflow.NewRedisStore(client, flags.StoreTTL)
	}
	p, err := newPipeline(sess, store, pipelineConfig{
		DataDir:    flags.DataDir,
		ScriptDir:  flags.ScriptDir,
		EntryPoint: flags.EntryPoint,
		Retries:    flags.Retries,
		RetryDelay: flags.RetryDelay,
	})
	if err != nil {
		sess.Logger.Fatal("Failed to build pipeline", zap.Error(err))
	}

	runID := flags.RunID
	if runID == "" {
		runID = sess.NameFromBase("run")
	}
	ctx := timer.WithTracing(context.Background(), sess.Clock)
	res, err := p.Run(ctx, runID)
	_ = timer.LogTracingInfo(ctx, sess.Logger)
	if err != nil {
		sess.Logger.Fatal("Pipeline failed", zap.String("run", runID), zap.Strings("skipped", res.Skipped), zap.Error(err))
	}
	sess.Logger.Info("Pipeline finished", zap.String("run", runID), zap.Strings("tasks", res.Succeeded))
}
