package estimator

import (
	"context"
	"strings"

	"github.com/samber/mo"
	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
	"sagekit/session"
)

const (
	MultiRecord  = "MultiRecord"
	SingleRecord = "SingleRecord"
)

type TransformerOptions struct {
	// Strategy is MultiRecord or SingleRecord; empty lets the platform pick.
	Strategy     string
	Accept       string
	OutputPath   string
	MaxPayloadMB uint
	Environment  map[string]string
}

type TransformInput struct {
	ContentType string
	// SplitType is None, Line or RecordIO.
	SplitType string
	// DataType defaults to S3Prefix.
	DataType string
}

// Transformer runs batch transform jobs against one model.
type Transformer struct {
	sess      session.Session
	ModelName string
	Resources lib.ResourceConfig
	opts      TransformerOptions
	latestJob mo.Option[string]
}

// Transform starts a job over the data at dataURI. It does not wait for it.
func (t *Transformer) Transform(ctx context.Context, dataURI string, in TransformInput) error {
	name := t.sess.NameFromBase(t.ModelName)
	output := t.opts.OutputPath
	if output == "" {
		output = strings.TrimSuffix(t.sess.DefaultOutputPath(), "/") + "/" + name
	}
	req := lib.TransformJobRequest{
		Name:         name,
		ModelName:    t.ModelName,
		DataURI:      dataURI,
		DataType:     in.DataType,
		ContentType:  in.ContentType,
		SplitType:    in.SplitType,
		Accept:       t.opts.Accept,
		OutputPath:   output,
		Resources:    t.Resources,
		Strategy:     t.opts.Strategy,
		MaxPayloadMB: t.opts.MaxPayloadMB,
		Environment:  t.opts.Environment,
	}
	if err := t.sess.Platform.CreateTransformJob(ctx, req); err != nil {
		return err
	}
	t.sess.Logger.Info("submitted transform job", zap.String("job", name), zap.String("model", t.ModelName), zap.String("output", output))
	t.latestJob = mo.Some(name)
	return nil
}

// Wait blocks until the latest job is terminal.
func (t *Transformer) Wait(ctx context.Context) (lib.TransformJobDescription, error) {
	name, ok := t.latestJob.Get()
	if !ok {
		return lib.TransformJobDescription{}, &lib.IllegalStateError{Op: "wait", Reason: "no transform job was started"}
	}
	return t.sess.Platform.WaitForTransformJob(ctx, name)
}

func (t *Transformer) LatestJobName() mo.Option[string] {
	return t.latestJob
}
