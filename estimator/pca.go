package estimator

import (
	"context"

	"github.com/samber/mo"

	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
	"sagekit/session"
)

const pcaMiniBatchSize = 500

func pcaSpecs() []hyperparam.Spec {
	return []hyperparam.Spec{
		hyperparam.Int("num_components", "number of principal components", hyperparam.IntLowerBound(0, false)).Require(),
		hyperparam.Enum("algorithm_mode", "", "regular", "randomized"),
		hyperparam.Boolean("subtract_mean", "whether the data is unbiased during training"),
		hyperparam.Int("extra_components", "", hyperparam.IntLowerBound(0, true)),
	}
}

type PCAHyperParameters struct {
	NumComponents   int
	AlgorithmMode   mo.Option[string]
	SubtractMean    mo.Option[bool]
	ExtraComponents mo.Option[int]
}

func (h PCAHyperParameters) apply(set *hyperparam.Set) error {
	if err := set.Set("num_components", h.NumComponents); err != nil {
		return err
	}
	if err := setOption(set, "algorithm_mode", h.AlgorithmMode); err != nil {
		return err
	}
	if err := setOption(set, "subtract_mean", h.SubtractMean); err != nil {
		return err
	}
	return setOption(set, "extra_components", h.ExtraComponents)
}

// PCA reduces records to their principal components.
type PCA struct {
	*Algorithm
}

func newPCA(a *Algorithm) *PCA {
	// one mini batch per instance for small record sets
	a.defaultMiniBatch = func(records lib.RecordSet) int {
		perInstance := int(records.NumRecords / uint64(a.config.InstanceCount))
		if perInstance < 1 {
			perInstance = 1
		}
		if perInstance > pcaMiniBatchSize {
			return pcaMiniBatchSize
		}
		return perInstance
	}
	return &PCA{Algorithm: a}
}

func NewPCA(sess session.Session, config Config, hps PCAHyperParameters) (*PCA, error) {
	a, err := newAlgorithm(sess, config, "pca", pcaSpecs()...)
	if err != nil {
		return nil, err
	}
	if err := hps.apply(a.hyperParameters); err != nil {
		return nil, err
	}
	return newPCA(a), nil
}

func AttachPCA(ctx context.Context, sess session.Session, jobName string) (*PCA, error) {
	a, err := attachAlgorithm(ctx, sess, jobName, "pca", pcaSpecs()...)
	if err != nil {
		return nil, err
	}
	return newPCA(a), nil
}

func (p *PCA) Params() PCAHyperParameters {
	set := p.hyperParameters
	return PCAHyperParameters{
		NumComponents:   optionOf[int](set, "num_components").OrElse(0),
		AlgorithmMode:   optionOf[string](set, "algorithm_mode"),
		SubtractMean:    optionOf[bool](set, "subtract_mean"),
		ExtraComponents: optionOf[int](set, "extra_components"),
	}
}

func (p *PCA) SetNumComponents(v int) error    { return p.SetHyperParameter("num_components", v) }
func (p *PCA) SetAlgorithmMode(v string) error { return p.SetHyperParameter("algorithm_mode", v) }
func (p *PCA) SetSubtractMean(v bool) error    { return p.SetHyperParameter("subtract_mean", v) }
func (p *PCA) SetExtraComponents(v int) error  { return p.SetHyperParameter("extra_components", v) }

func (p *PCA) CreateModel(ctx context.Context) (*PCAModel, error) {
	m, err := p.Estimator.CreateModel(ctx)
	if err != nil {
		return nil, err
	}
	return &PCAModel{Model: m}, nil
}

func (p *PCA) Deploy(ctx context.Context, instanceCount uint, instanceType string) (*PCAPredictor, error) {
	m, err := p.CreateModel(ctx)
	if err != nil {
		return nil, err
	}
	return m.Deploy(ctx, instanceCount, instanceType)
}

type PCAModel struct {
	*Model
}

func (m *PCAModel) Deploy(ctx context.Context, instanceCount uint, instanceType string) (*PCAPredictor, error) {
	p, err := m.Model.Deploy(ctx, instanceCount, instanceType)
	if err != nil {
		return nil, err
	}
	return NewPCAPredictor(p), nil
}

type PCAPredictor struct {
	*Predictor
}

func NewPCAPredictor(p *Predictor) *PCAPredictor {
	p.Serializer = RecordSerializer{}
	p.Deserializer = JSONDeserializer{}
	return &PCAPredictor{Predictor: p}
}

// Projections returns the projection of every row onto the components.
func (p *PCAPredictor) Projections(ctx context.Context, rows [][]float64) ([][]float64, error) {
	body, err := p.Serializer.Serialize(rows)
	if err != nil {
		return nil, err
	}
	resp, err := p.PredictRaw(ctx, body, ContentTypeJSON, ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	var projections [][]float64
	err = eachPrediction(resp.Body, "projections", func(item []byte) error {
		v, err := floatsAt(item, "projection")
		if err != nil {
			return err
		}
		projections = append(projections, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return projections, nil
}
