package estimator_test

import (
	"context"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagekit/estimator"
	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
	"sagekit/test"
)

func TestPCADefaultMiniBatch(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		records   uint64
		instances uint
		expected  string
	}{
		{10, 1, "10"},
		{1000, 2, "500"},
		{100000, 4, "500"},
		{0, 1, "1"},
	}
	for _, c := range cases {
		env := test.Session(t)
		cfg := trainConfig
		cfg.InstanceCount = c.instances
		pca, err := estimator.NewPCA(env.Session, cfg, estimator.PCAHyperParameters{NumComponents: 2})
		require.NoError(t, err)
		rs, err := lib.NewRecordSet("s3://bucket/pca", c.records, 4, "")
		require.NoError(t, err)

		_, err = pca.FitRecordSet(ctx, rs, mo.None[int]())
		require.NoError(t, err)
		assert.Equal(t, c.expected, env.Platform.TrainingRequests[0].HyperParameters["mini_batch_size"])
	}
}

func TestPCAHyperParameters(t *testing.T) {
	env := test.Session(t)
	_, err := estimator.NewPCA(env.Session, trainConfig, estimator.PCAHyperParameters{NumComponents: 0})
	assert.ErrorIs(t, err, hyperparam.ErrOutOfRange)

	pca, err := estimator.NewPCA(env.Session, trainConfig, estimator.PCAHyperParameters{
		NumComponents:   3,
		AlgorithmMode:   mo.Some("randomized"),
		SubtractMean:    mo.Some(true),
		ExtraComponents: mo.Some(0),
	})
	require.NoError(t, err)
	hps, err := pca.HyperParameters()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"num_components":   "3",
		"algorithm_mode":   "randomized",
		"subtract_mean":    "True",
		"extra_components": "0",
	}, hps)
	assert.ErrorIs(t, pca.SetAlgorithmMode("stable"), hyperparam.ErrNotInSet)
	assert.ErrorIs(t, pca.SetExtraComponents(-1), hyperparam.ErrOutOfRange)
}

func TestPCAPredictor(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	pca, err := estimator.NewPCA(env.Session, trainConfig, estimator.PCAHyperParameters{NumComponents: 2})
	require.NoError(t, err)
	j, err := pca.FitRecordSet(ctx, recordSet(t), mo.Some(100))
	require.NoError(t, err)
	_, err = j.Wait(ctx)
	require.NoError(t, err)

	env.Platform.InvokeHandler = func(lib.InvokeRequest) (lib.InvokeResponse, error) {
		return lib.InvokeResponse{Body: []byte(`{"projections": [{"projection": [0.5, -1.5]}]}`)}, nil
	}
	p, err := pca.Deploy(ctx, 1, "ml.c4.xlarge")
	require.NoError(t, err)
	projections, err := p.Projections(ctx, [][]float64{{1, 2, 3, 4}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, -1.5}}, projections)

	env.Platform.InvokeHandler = func(lib.InvokeRequest) (lib.InvokeResponse, error) {
		return lib.InvokeResponse{Body: []byte(`{"predictions": []}`)}, nil
	}
	_, err = p.Projections(ctx, [][]float64{{1, 2, 3, 4}})
	assert.Error(t, err)
}
