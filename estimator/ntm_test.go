package estimator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagekit/estimator"
	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
	"sagekit/test"
)

func TestNTMAllHyperParameters(t *testing.T) {
	env := test.Session(t)
	ntm, err := estimator.NewNTM(env.Session, trainConfig, estimator.NTMHyperParameters{
		NumTopics:               5,
		EncoderLayers:           mo.Some([]int{1, 2, 3}),
		Epochs:                  mo.Some(3),
		EncoderLayersActivation: mo.Some("tanh"),
		Optimizer:               mo.Some("sgd"),
		Tolerance:               mo.Some(0.05),
		NumPatienceEpochs:       mo.Some(2),
		BatchNorm:               mo.Some(false),
		RescaleGradient:         mo.Some(0.5),
		ClipGradient:            mo.Some(0.5),
		WeightDecay:             mo.Some(0.5),
		LearningRate:            mo.Some(0.5),
	})
	require.NoError(t, err)

	hps, err := ntm.HyperParameters()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"num_topics":                "5",
		"encoder_layers":            "[1, 2, 3]",
		"epochs":                    "3",
		"encoder_layers_activation": "tanh",
		"optimizer":                 "sgd",
		"tolerance":                 "0.05",
		"num_patience_epochs":       "2",
		"batch_norm":                "False",
		"rescale_gradient":          "0.5",
		"clip_gradient":             "0.5",
		"weight_decay":              "0.5",
		"learning_rate":             "0.5",
	}, hps)
	assert.Equal(t, mo.Some(3), ntm.Params().Epochs)
	assert.Equal(t, 5, ntm.Params().NumTopics)
}

func TestNTMTrainImage(t *testing.T) {
	env := test.Session(t)
	image, err := newNTM(t, env).TrainImage()
	require.NoError(t, err)
	assert.Equal(t, ntmImage, image)
}

func TestNTMRejectsOutOfRange(t *testing.T) {
	env := test.Session(t)
	cases := []struct {
		name string
		hps  estimator.NTMHyperParameters
		err  error
	}{
		{"num_topics", estimator.NTMHyperParameters{NumTopics: 1}, hyperparam.ErrOutOfRange},
		{"num_topics", estimator.NTMHyperParameters{NumTopics: 1001}, hyperparam.ErrOutOfRange},
		{"epochs", estimator.NTMHyperParameters{NumTopics: 5, Epochs: mo.Some(0)}, hyperparam.ErrOutOfRange},
		{"epochs", estimator.NTMHyperParameters{NumTopics: 5, Epochs: mo.Some(101)}, hyperparam.ErrOutOfRange},
		{"encoder_layers_activation", estimator.NTMHyperParameters{NumTopics: 5, EncoderLayersActivation: mo.Some("string")}, hyperparam.ErrNotInSet},
		{"optimizer", estimator.NTMHyperParameters{NumTopics: 5, Optimizer: mo.Some("string")}, hyperparam.ErrNotInSet},
		{"tolerance", estimator.NTMHyperParameters{NumTopics: 5, Tolerance: mo.Some(0.0)}, hyperparam.ErrOutOfRange},
		{"tolerance", estimator.NTMHyperParameters{NumTopics: 5, Tolerance: mo.Some(0.5)}, hyperparam.ErrOutOfRange},
		{"num_patience_epochs", estimator.NTMHyperParameters{NumTopics: 5, NumPatienceEpochs: mo.Some(0)}, hyperparam.ErrOutOfRange},
		{"num_patience_epochs", estimator.NTMHyperParameters{NumTopics: 5, NumPatienceEpochs: mo.Some(11)}, hyperparam.ErrOutOfRange},
		{"rescale_gradient", estimator.NTMHyperParameters{NumTopics: 5, RescaleGradient: mo.Some(0.0)}, hyperparam.ErrOutOfRange},
		{"rescale_gradient", estimator.NTMHyperParameters{NumTopics: 5, RescaleGradient: mo.Some(10.0)}, hyperparam.ErrOutOfRange},
		{"clip_gradient", estimator.NTMHyperParameters{NumTopics: 5, ClipGradient: mo.Some(0.0)}, hyperparam.ErrOutOfRange},
		{"weight_decay", estimator.NTMHyperParameters{NumTopics: 5, WeightDecay: mo.Some(-1.0)}, hyperparam.ErrOutOfRange},
		{"weight_decay", estimator.NTMHyperParameters{NumTopics: 5, WeightDecay: mo.Some(2.0)}, hyperparam.ErrOutOfRange},
		{"learning_rate", estimator.NTMHyperParameters{NumTopics: 5, LearningRate: mo.Some(0.0)}, hyperparam.ErrOutOfRange},
		{"learning_rate", estimator.NTMHyperParameters{NumTopics: 5, LearningRate: mo.Some(2.0)}, hyperparam.ErrOutOfRange},
	}
	for _, c := range cases {
		_, err := estimator.NewNTM(env.Session, trainConfig, c.hps)
		var verr *hyperparam.ValidationError
		require.True(t, errors.As(err, &verr), c.name)
		assert.Equal(t, c.name, verr.Field)
		assert.ErrorIs(t, err, c.err, c.name)
	}
}

func TestNTMBoundaries(t *testing.T) {
	env := test.Session(t)
	_, err := estimator.NewNTM(env.Session, trainConfig, estimator.NTMHyperParameters{
		NumTopics:         1000,
		Epochs:            mo.Some(100),
		Tolerance:         mo.Some(1e-6),
		NumPatienceEpochs: mo.Some(10),
		RescaleGradient:   mo.Some(1.0),
		ClipGradient:      mo.Some(1e-3),
		WeightDecay:       mo.Some(0.0),
		LearningRate:      mo.Some(1.0),
	})
	assert.NoError(t, err)

	_, err = estimator.NewNTM(env.Session, trainConfig, estimator.NTMHyperParameters{
		NumTopics:         2,
		Epochs:            mo.Some(1),
		Tolerance:         mo.Some(0.1),
		NumPatienceEpochs: mo.Some(1),
		RescaleGradient:   mo.Some(1e-3),
		WeightDecay:       mo.Some(1.0),
		LearningRate:      mo.Some(1e-6),
	})
	assert.NoError(t, err)
}

func TestNTMSettersValidate(t *testing.T) {
	env := test.Session(t)
	ntm := newNTM(t, env)

	require.NoError(t, ntm.SetEpochs(10))
	assert.ErrorIs(t, ntm.SetEpochs(101), hyperparam.ErrOutOfRange)
	assert.Equal(t, mo.Some(10), ntm.Params().Epochs)

	assert.ErrorIs(t, ntm.SetHyperParameter("epochs", "string"), hyperparam.ErrWrongType)
	assert.ErrorIs(t, ntm.SetHyperParameter("encoder_layers", 0), hyperparam.ErrWrongType)
	assert.ErrorIs(t, ntm.SetHyperParameter("tolerance", "string"), hyperparam.ErrWrongType)
	assert.ErrorIs(t, ntm.SetHyperParameter("num_topics", "string"), hyperparam.ErrWrongType)
	assert.ErrorIs(t, ntm.SetHyperParameter("min_co_occurence", 3), hyperparam.ErrUnsupported)
	assert.Equal(t, mo.Some(10), ntm.Params().Epochs)

	require.NoError(t, ntm.SetEncoderLayers([]int{10, 5}))
	require.NoError(t, ntm.SetBatchNorm(true))
	hps, err := ntm.HyperParameters()
	require.NoError(t, err)
	assert.Equal(t, "[10, 5]", hps["encoder_layers"])
	assert.Equal(t, "True", hps["batch_norm"])
}

func TestNTMPredictor(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := fitNTM(t, env)
	env.Platform.InvokeHandler = func(req lib.InvokeRequest) (lib.InvokeResponse, error) {
		return lib.InvokeResponse{
			ContentType: "application/json",
			Body:        []byte(`{"predictions": [{"topic_weights": [0.25, 0.75]}, {"topic_weights": [1, 0]}]}`),
		}, nil
	}

	m, err := ntm.CreateModel(ctx)
	require.NoError(t, err)
	p, err := m.Deploy(ctx, 1, "ml.c4.xlarge")
	require.NoError(t, err)

	weights, err := p.TopicWeights(ctx, [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.25, 0.75}, {1, 0}}, weights)
	assert.Equal(t, `{"instances":[{"features":[1,2]},{"features":[3,4]}]}`, string(env.Platform.Invocations[0].Body))

	env.Platform.InvokeHandler = func(lib.InvokeRequest) (lib.InvokeResponse, error) {
		return lib.InvokeResponse{Body: []byte(`{"predictions": [{"topic_weights": ["x"]}]}`)}, nil
	}
	_, err = p.TopicWeights(ctx, [][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestAttachNTM(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	env.Platform.AddTrainingJob(lib.TrainingJobDescription{
		Name:   "ntm-previous",
		Image:  ntmImage,
		Role:   "myrole",
		Status: lib.JobCompleted,
		HyperParameters: map[string]string{
			"num_topics":               "5",
			"epochs":                   "3",
			"encoder_layers":           "[1, 2]",
			"feature_dim":              "10",
			"mini_batch_size":          "200",
			"_tuning_objective_metric": "test:pwll",
		},
		ArtifactURI: "s3://bucket/model.tar.gz",
		Resources:   lib.ResourceConfig{InstanceCount: 1, InstanceType: "ml.c4.xlarge", VolumeSizeGB: 30},
		OutputPath:  "s3://bucket/",
	})

	ntm, err := estimator.AttachNTM(ctx, env.Session, "ntm-previous")
	require.NoError(t, err)
	assert.Equal(t, 5, ntm.Params().NumTopics)
	assert.Equal(t, mo.Some(3), ntm.Params().Epochs)
	assert.Equal(t, mo.Some([]int{1, 2}), ntm.Params().EncoderLayers)
	assert.Equal(t, "ntm", ntm.Config().BaseJobName)
	assert.Equal(t, "ntm-previous", ntm.LatestTrainingJob().MustGet().Name)

	m, err := ntm.CreateModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/model.tar.gz", m.ArtifactURI)

	_, err = estimator.AttachKMeans(ctx, env.Session, "ntm-previous")
	assert.ErrorIs(t, err, lib.ErrIllegalState)

	_, err = estimator.AttachNTM(ctx, env.Session, "missing")
	var terr *lib.TransportError
	assert.True(t, errors.As(err, &terr))
}
