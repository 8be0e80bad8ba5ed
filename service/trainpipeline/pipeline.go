package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"sagekit/estimator"
	"sagekit/session"
	"sagekit/workflow"
)

type dataURIs struct {
	Training  string `json:"training_data"`
	Transform string `json:"transform_data"`
}

var (
	dataKey        = workflow.NewKey[dataURIs]("prepare_data")
	trainingJobKey = workflow.NewKey[string]("training_job")
)

type pipelineConfig struct {
	DataDir    string
	ScriptDir  string
	EntryPoint string
	Retries    int
	RetryDelay time.Duration
}

type trainPipeline struct {
	sess session.Session
	conf pipelineConfig
}

// newPipeline wires prepare_data -> tf_training -> tf_transform.
func newPipeline(sess session.Session, store workflow.Store, conf pipelineConfig) (*workflow.Pipeline, error) {
	tp := trainPipeline{sess: sess, conf: conf}
	p := workflow.NewPipeline("tensorflow_training_transform", store, sess.Clock, sess.Logger)
	tasks := []workflow.Task{
		{ID: "prepare_data", Run: tp.prepareData},
		{ID: "tf_training", Upstream: []string{"prepare_data"}, Run: tp.train},
		{ID: "tf_transform", Upstream: []string{"tf_training"}, Run: tp.transform},
	}
	for _, t := range tasks {
		t.Retries = conf.Retries
		t.RetryDelay = conf.RetryDelay
		if err := p.Add(t); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (tp trainPipeline) prepareData(ctx context.Context, rc workflow.RunContext) error {
	training, err := tp.sess.UploadData(ctx, tp.conf.DataDir, "data/DEMO-mnist")
	if err != nil {
		return err
	}
	// 1000 MNIST images from the public sample data bucket
	transform := fmt.Sprintf("s3://sagemaker-sample-data-%s/batch-transform/mnist-1000-samples", tp.sess.Region)
	rc.Logger.Info("uploaded training data", zap.String("uri", training))
	return workflow.Put(ctx, rc, dataKey, dataURIs{Training: training, Transform: transform})
}

func (tp trainPipeline) train(ctx context.Context, rc workflow.RunContext) error {
	data, err := workflow.Get(ctx, rc, dataKey)
	if err != nil {
		return err
	}
	tf, err := estimator.NewTensorFlow(tp.sess, estimator.TensorFlowConfig{
		Config: estimator.Config{
			InstanceCount: 2,
			InstanceType:  "ml.c4.xlarge",
		},
		EntryPoint:       tp.conf.EntryPoint,
		SourceDir:        tp.conf.ScriptDir,
		FrameworkVersion: "1.11.0",
		TrainingSteps:    mo.Some(1000),
		EvaluationSteps:  mo.Some(100),
	})
	if err != nil {
		return err
	}
	job, err := tf.Fit(ctx, data.Training)
	if err != nil {
		return err
	}
	if _, err := job.Wait(ctx); err != nil {
		return err
	}
	return workflow.Put(ctx, rc, trainingJobKey, job.Name)
}

func (tp trainPipeline) transform(ctx context.Context, rc workflow.RunContext) error {
	jobName, err := workflow.Get(ctx, rc, trainingJobKey)
	if err != nil {
		return err
	}
	data, err := workflow.Get(ctx, rc, dataKey)
	if err != nil {
		return err
	}
	tf, err := estimator.AttachTensorFlow(ctx, tp.sess, jobName)
	if err != nil {
		return err
	}
	transformer, err := tf.Transformer(ctx, 1, "ml.m4.xlarge", estimator.TransformerOptions{})
	if err != nil {
		return err
	}
	if err := transformer.Transform(ctx, data.Transform, estimator.TransformInput{ContentType: estimator.ContentTypeCSV}); err != nil {
		return err
	}
	desc, err := transformer.Wait(ctx)
	if err != nil {
		return err
	}
	rc.Logger.Info("transform finished", zap.String("job", desc.Name), zap.String("output", desc.OutputPath))
	return nil
}
