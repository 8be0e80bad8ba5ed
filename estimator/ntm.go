package estimator

import (
	"context"

	"github.com/samber/mo"

	"sagekit/lib/hyperparam"
	"sagekit/session"
)

func ntmSpecs() []hyperparam.Spec {
	return []hyperparam.Spec{
		hyperparam.Int("num_topics", "number of topics to extract", hyperparam.IntRange(2, 1000, true, true)).Require(),
		hyperparam.IntList("encoder_layers", "sizes of the encoder layers"),
		hyperparam.Int("epochs", "maximum number of passes over the data", hyperparam.IntRange(1, 100, true, true)),
		hyperparam.Enum("encoder_layers_activation", "activation of the encoder layers", "sigmoid", "tanh", "relu"),
		hyperparam.Enum("optimizer", "", "adagrad", "adam", "rmsprop", "sgd", "adadelta"),
		hyperparam.Float("tolerance", "maximum relative change in loss for early stopping", hyperparam.FloatRange(1e-6, 0.1, true, true)),
		hyperparam.Int("num_patience_epochs", "epochs without improvement before stopping", hyperparam.IntRange(1, 10, true, true)),
		hyperparam.Boolean("batch_norm", "whether to use batch normalization"),
		hyperparam.Float("rescale_gradient", "", hyperparam.FloatRange(1e-3, 1, true, true)),
		hyperparam.Float("clip_gradient", "maximum magnitude of each gradient component", hyperparam.FloatLowerBound(1e-3, true)),
		hyperparam.Float("weight_decay", "", hyperparam.FloatRange(0, 1, true, true)),
		hyperparam.Float("learning_rate", "", hyperparam.FloatRange(1e-6, 1, true, true)),
	}
}

// NTMHyperParameters are the hyperparameters of the neural topic model.
type NTMHyperParameters struct {
	NumTopics               int
	EncoderLayers           mo.Option[[]int]
	Epochs                  mo.Option[int]
	EncoderLayersActivation mo.Option[string]
	Optimizer               mo.Option[string]
	Tolerance               mo.Option[float64]
	NumPatienceEpochs       mo.Option[int]
	BatchNorm               mo.Option[bool]
	RescaleGradient         mo.Option[float64]
	ClipGradient            mo.Option[float64]
	WeightDecay             mo.Option[float64]
	LearningRate            mo.Option[float64]
}

func (h NTMHyperParameters) apply(set *hyperparam.Set) error {
	if err := set.Set("num_topics", h.NumTopics); err != nil {
		return err
	}
	for _, err := range []error{
		setOption(set, "encoder_layers", h.EncoderLayers),
		setOption(set, "epochs", h.Epochs),
		setOption(set, "encoder_layers_activation", h.EncoderLayersActivation),
		setOption(set, "optimizer", h.Optimizer),
		setOption(set, "tolerance", h.Tolerance),
		setOption(set, "num_patience_epochs", h.NumPatienceEpochs),
		setOption(set, "batch_norm", h.BatchNorm),
		setOption(set, "rescale_gradient", h.RescaleGradient),
		setOption(set, "clip_gradient", h.ClipGradient),
		setOption(set, "weight_decay", h.WeightDecay),
		setOption(set, "learning_rate", h.LearningRate),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// NTM trains a neural topic model.
type NTM struct {
	*Algorithm
}

func NewNTM(sess session.Session, config Config, hps NTMHyperParameters) (*NTM, error) {
	a, err := newAlgorithm(sess, config, "ntm", ntmSpecs()...)
	if err != nil {
		return nil, err
	}
	if err := hps.apply(a.hyperParameters); err != nil {
		return nil, err
	}
	return &NTM{Algorithm: a}, nil
}

// AttachNTM rebuilds an NTM estimator from the training job jobName.
func AttachNTM(ctx context.Context, sess session.Session, jobName string) (*NTM, error) {
	a, err := attachAlgorithm(ctx, sess, jobName, "ntm", ntmSpecs()...)
	if err != nil {
		return nil, err
	}
	return &NTM{Algorithm: a}, nil
}

// Params reads the current hyperparameters back.
func (n *NTM) Params() NTMHyperParameters {
	set := n.hyperParameters
	return NTMHyperParameters{
		NumTopics:               optionOf[int](set, "num_topics").OrElse(0),
		EncoderLayers:           optionOf[[]int](set, "encoder_layers"),
		Epochs:                  optionOf[int](set, "epochs"),
		EncoderLayersActivation: optionOf[string](set, "encoder_layers_activation"),
		Optimizer:               optionOf[string](set, "optimizer"),
		Tolerance:               optionOf[float64](set, "tolerance"),
		NumPatienceEpochs:       optionOf[int](set, "num_patience_epochs"),
		BatchNorm:               optionOf[bool](set, "batch_norm"),
		RescaleGradient:         optionOf[float64](set, "rescale_gradient"),
		ClipGradient:            optionOf[float64](set, "clip_gradient"),
		WeightDecay:             optionOf[float64](set, "weight_decay"),
		LearningRate:            optionOf[float64](set, "learning_rate"),
	}
}

func (n *NTM) SetNumTopics(v int) error       { return n.SetHyperParameter("num_topics", v) }
func (n *NTM) SetEncoderLayers(v []int) error { return n.SetHyperParameter("encoder_layers", v) }
func (n *NTM) SetEpochs(v int) error          { return n.SetHyperParameter("epochs", v) }
func (n *NTM) SetEncoderLayersActivation(v string) error {
	return n.SetHyperParameter("encoder_layers_activation", v)
}
func (n *NTM) SetOptimizer(v string) error        { return n.SetHyperParameter("optimizer", v) }
func (n *NTM) SetTolerance(v float64) error       { return n.SetHyperParameter("tolerance", v) }
func (n *NTM) SetNumPatienceEpochs(v int) error   { return n.SetHyperParameter("num_patience_epochs", v) }
func (n *NTM) SetBatchNorm(v bool) error          { return n.SetHyperParameter("batch_norm", v) }
func (n *NTM) SetRescaleGradient(v float64) error { return n.SetHyperParameter("rescale_gradient", v) }
func (n *NTM) SetClipGradient(v float64) error    { return n.SetHyperParameter("clip_gradient", v) }
func (n *NTM) SetWeightDecay(v float64) error     { return n.SetHyperParameter("weight_decay", v) }
func (n *NTM) SetLearningRate(v float64) error    { return n.SetHyperParameter("learning_rate", v) }

func (n *NTM) CreateModel(ctx context.Context) (*NTMModel, error) {
	m, err := n.Estimator.CreateModel(ctx)
	if err != nil {
		return nil, err
	}
	return &NTMModel{Model: m}, nil
}

func (n *NTM) Deploy(ctx context.Context, instanceCount uint, instanceType string) (*NTMPredictor, error) {
	m, err := n.CreateModel(ctx)
	if err != nil {
		return nil, err
	}
	return m.Deploy(ctx, instanceCount, instanceType)
}

type NTMModel struct {
	*Model
}

func (m *NTMModel) Deploy(ctx context.Context, instanceCount uint, instanceType string) (*NTMPredictor, error) {
	p, err := m.Model.Deploy(ctx, instanceCount, instanceType)
	if err != nil {
		return nil, err
	}
	return NewNTMPredictor(p), nil
}

// NTMPredictor returns the topic mixture of each document it is sent.
type NTMPredictor struct {
	*Predictor
}

func NewNTMPredictor(p *Predictor) *NTMPredictor {
	p.Serializer = RecordSerializer{}
	p.Deserializer = JSONDeserializer{}
	return &NTMPredictor{Predictor: p}
}

// TopicWeights returns one weight vector per input row, in input order.
func (p *NTMPredictor) TopicWeights(ctx context.Context, rows [][]float64) ([][]float64, error) {
	body, err := p.Serializer.Serialize(rows)
	if err != nil {
		return nil, err
	}
	resp, err := p.PredictRaw(ctx, body, ContentTypeJSON, ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	var weights [][]float64
	err = eachPrediction(resp.Body, "predictions", func(item []byte) error {
		w, err := floatsAt(item, "topic_weights")
		if err != nil {
			return err
		}
		weights = append(weights, w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return weights, nil
}
