package estimator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
	"sagekit/session"
)

// Model is a trained artifact that can be served from an endpoint or used
// for batch transforms. It is registered with the platform on first use.
type Model struct {
	sess        session.Session
	Name        string
	ArtifactURI string
	Role        string
	Environment map[string]string

	image   func(instanceType string) (string, error)
	created bool
}

// NewModel binds an artifact to the image serving it.
func NewModel(sess session.Session, name, artifactURI, image string) *Model {
	return &Model{
		sess:        sess,
		Name:        name,
		ArtifactURI: artifactURI,
		Role:        sess.Role,
		image:       func(string) (string, error) { return image, nil },
	}
}

func (m *Model) Image(instanceType string) (string, error) {
	return m.image(instanceType)
}

// create registers the model unless a model of that name already exists,
// e.g. from an earlier attach of the same training job.
func (m *Model) create(ctx context.Context, instanceType string) error {
	if m.created {
		return nil
	}
	exists, err := m.sess.Platform.ModelExists(ctx, m.Name)
	if err != nil {
		return err
	}
	if exists {
		m.sess.Logger.Info("using already existing model", zap.String("model", m.Name))
		m.created = true
		return nil
	}
	image, err := m.Image(instanceType)
	if err != nil {
		return err
	}
	err = m.sess.Platform.CreateModel(ctx, lib.Model{
		Name:        m.Name,
		Image:       image,
		ArtifactURI: m.ArtifactURI,
		Role:        m.Role,
		Environment: m.Environment,
	})
	if err != nil {
		return err
	}
	m.created = true
	return nil
}

// Deploy creates an endpoint named after the model and blocks until it is
// in service. It fails with an IllegalStateError when that endpoint already
// exists; an endpoint config left behind by an earlier failed deploy is
// reused.
func (m *Model) Deploy(ctx context.Context, instanceCount uint, instanceType string) (*Predictor, error) {
	if err := validateInstances(instanceCount, instanceType); err != nil {
		return nil, err
	}
	live, err := m.sess.Platform.EndpointExists(ctx, m.Name)
	if err != nil {
		return nil, err
	}
	if live {
		return nil, &lib.IllegalStateError{
			Op:     "deploy",
			Reason: fmt.Sprintf("endpoint %s already exists, delete it before deploying %s again", m.Name, m.Name),
		}
	}
	if err := m.create(ctx, instanceType); err != nil {
		return nil, err
	}
	cfg := lib.EndpointConfig{
		Name:          m.Name,
		ModelName:     m.Name,
		InstanceType:  instanceType,
		InstanceCount: instanceCount,
	}
	cfgExists, err := m.sess.Platform.EndpointConfigExists(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	if cfgExists {
		m.sess.Logger.Info("using already existing endpoint config", zap.String("endpoint_config", cfg.Name))
	} else if err := m.sess.Platform.CreateEndpointConfig(ctx, cfg); err != nil {
		return nil, err
	}
	endpoint := lib.Endpoint{Name: m.Name, EndpointConfigName: cfg.Name}
	if err := m.sess.Platform.CreateEndpoint(ctx, endpoint); err != nil {
		return nil, err
	}
	if _, err := m.sess.Platform.WaitForEndpoint(ctx, endpoint.Name); err != nil {
		return nil, err
	}
	m.sess.Logger.Info("endpoint in service", zap.String("endpoint", endpoint.Name), zap.String("model", m.Name))
	recordEndpoint(m.sess, cfg, endpoint.Name)
	return NewPredictor(m.sess, endpoint.Name), nil
}

// Transformer returns a transformer running batch jobs against the model.
// The model is registered right away so that jobs can reference it.
func (m *Model) Transformer(ctx context.Context, instanceCount uint, instanceType string, opts TransformerOptions) (*Transformer, error) {
	if err := validateInstances(instanceCount, instanceType); err != nil {
		return nil, err
	}
	if err := m.create(ctx, instanceType); err != nil {
		return nil, err
	}
	return &Transformer{
		sess:      m.sess,
		ModelName: m.Name,
		Resources: lib.ResourceConfig{InstanceCount: instanceCount, InstanceType: instanceType},
		opts:      opts,
	}, nil
}

func (m *Model) Delete(ctx context.Context) error {
	return m.sess.Platform.DeleteModel(ctx, m.Name)
}
