package estimator

import (
	"context"
	"fmt"

	"github.com/samber/mo"
	"go.uber.org/zap"

	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
	"sagekit/session"
)

// Estimator is the state every trainable algorithm shares: where and how
// jobs run, the validated hyperparameters and the most recent training job.
//
// An Estimator is not safe for concurrent use.
type Estimator struct {
	sess            session.Session
	config          Config
	hyperParameters *hyperparam.Set
	trainImage      func() (string, error)
	// hostingImage and hostingEnv describe the container models trained by
	// this estimator are served with.
	hostingImage func(instanceType string) (string, error)
	hostingEnv   func() map[string]string
	// fixed hyperparameters are sent with every job and cannot be changed.
	fixed     map[string]string
	latestJob mo.Option[*TrainingJob]
}

func newEstimator(sess session.Session, config Config, set *hyperparam.Set, trainImage func() (string, error)) (*Estimator, error) {
	if config.Role == "" {
		config.Role = sess.Role
	}
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	e := &Estimator{
		sess:            sess,
		config:          config,
		hyperParameters: set,
		trainImage:      trainImage,
	}
	e.hostingImage = func(string) (string, error) { return e.TrainImage() }
	return e, nil
}

func (e *Estimator) Config() Config {
	return e.config
}

// SetHyperParameter validates v against the named hyperparameter before
// storing it. A rejected value leaves the previous value in place.
func (e *Estimator) SetHyperParameter(name string, v interface{}) error {
	return e.hyperParameters.Set(name, v)
}

func (e *Estimator) HyperParameter(name string) mo.Option[interface{}] {
	return e.hyperParameters.Get(name)
}

// HyperParameters returns the hyperparameters in the text form submitted to
// the platform. It fails with *hyperparam.MissingFieldError when a required
// hyperparameter is not set.
func (e *Estimator) HyperParameters() (map[string]string, error) {
	return e.serialize(e.hyperParameters)
}

func (e *Estimator) serialize(set *hyperparam.Set) (map[string]string, error) {
	hps, err := set.Serialize()
	if err != nil {
		return nil, err
	}
	for k, v := range e.fixed {
		hps[k] = v
	}
	return hps, nil
}

func (e *Estimator) TrainImage() (string, error) {
	return e.trainImage()
}

func (e *Estimator) LatestTrainingJob() mo.Option[*TrainingJob] {
	return e.latestJob
}

func (e *Estimator) outputPath() string {
	if e.config.OutputPath != "" {
		return e.config.OutputPath
	}
	return e.sess.DefaultOutputPath()
}

func (e *Estimator) jobName() (string, error) {
	base := e.config.BaseJobName
	if base == "" {
		image, err := e.TrainImage()
		if err != nil {
			return "", err
		}
		base = lib.BaseNameFromImage(image)
	}
	return e.sess.NameFromBase(base), nil
}

// submit starts a training job named name with the hyperparameters of set
// plus extra. set replaces the estimator's hyperparameters only once the job
// was accepted, so a failed submission leaves the estimator unchanged.
func (e *Estimator) submit(ctx context.Context, name string, set *hyperparam.Set, extra map[string]string, inputs []lib.Channel) (*TrainingJob, error) {
	hps, err := e.serialize(set)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		hps[k] = v
	}
	image, err := e.TrainImage()
	if err != nil {
		return nil, err
	}
	req := lib.TrainingJobRequest{
		Name:            name,
		Image:           image,
		Role:            e.config.Role,
		Resources:       e.config.resources(),
		HyperParameters: hps,
		Inputs:          inputs,
		OutputPath:      e.outputPath(),
		MaxRuntime:      e.config.MaxRuntime,
	}
	if err := e.sess.Platform.CreateTrainingJob(ctx, req); err != nil {
		return nil, err
	}
	e.sess.Logger.Info("submitted training job", zap.String("job", name), zap.String("image", image))
	recordTrainingJob(e.sess, req)

	e.hyperParameters = set
	job := &TrainingJob{sess: e.sess, Name: name}
	e.latestJob = mo.Some(job)
	return job, nil
}

// CreateModel describes the latest training job and returns a model bound
// to its artifact. The model is registered with the platform when it is
// deployed or used for a batch transform.
func (e *Estimator) CreateModel(ctx context.Context) (*Model, error) {
	job, ok := e.latestJob.Get()
	if !ok {
		return nil, &lib.IllegalStateError{Op: "create model", Reason: "estimator has not been fit yet"}
	}
	desc, err := job.Describe(ctx)
	if err != nil {
		return nil, err
	}
	if desc.Status != lib.JobCompleted || desc.ArtifactURI == "" {
		return nil, &lib.IllegalStateError{
			Op:     "create model",
			Reason: fmt.Sprintf("training job %s is %s, not %s", job.Name, desc.Status, lib.JobCompleted),
		}
	}
	m := &Model{
		sess:        e.sess,
		Name:        job.Name,
		ArtifactURI: desc.ArtifactURI,
		Role:        e.config.Role,
		image:       e.hostingImage,
	}
	if e.hostingEnv != nil {
		m.Environment = e.hostingEnv()
	}
	return m, nil
}

// Deploy creates a model from the latest training job and serves it from a
// new endpoint.
func (e *Estimator) Deploy(ctx context.Context, instanceCount uint, instanceType string) (*Predictor, error) {
	m, err := e.CreateModel(ctx)
	if err != nil {
		return nil, err
	}
	return m.Deploy(ctx, instanceCount, instanceType)
}

// Transformer creates a model from the latest training job and returns a
// transformer running batch jobs against it.
func (e *Estimator) Transformer(ctx context.Context, instanceCount uint, instanceType string, opts TransformerOptions) (*Transformer, error) {
	m, err := e.CreateModel(ctx)
	if err != nil {
		return nil, err
	}
	return m.Transformer(ctx, instanceCount, instanceType, opts)
}

// attach describes jobName so that an estimator can be rebuilt from it.
func attach(ctx context.Context, sess session.Session, jobName string) (lib.TrainingJobDescription, error) {
	desc, err := sess.Platform.DescribeTrainingJob(ctx, jobName)
	if err != nil {
		return desc, err
	}
	sess.Logger.Info("attached to training job", zap.String("job", jobName), zap.String("status", string(desc.Status)))
	return desc, nil
}

func (e *Estimator) bindJob(name string) {
	e.latestJob = mo.Some(&TrainingJob{sess: e.sess, Name: name})
}
