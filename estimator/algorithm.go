package estimator

import (
	"context"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/samber/mo"

	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
	"sagekit/session"
)

const DefaultMaxMiniBatchSize = 10000

// Algorithm is an estimator for a first-party algorithm. It trains from
// RecordSets and reads feature_dim and mini_batch_size from them at fit time.
type Algorithm struct {
	*Estimator
	name string
	// defaultMiniBatch picks mini_batch_size when fit is not given one. When
	// nil the hyperparameter is left out and the algorithm's own default
	// applies.
	defaultMiniBatch func(records lib.RecordSet) int
}

func newAlgorithm(sess session.Session, config Config, name string, specs ...hyperparam.Spec) (*Algorithm, error) {
	specs = append(specs,
		hyperparam.Int("feature_dim", "dimension of the input vectors", hyperparam.IntLowerBound(0, false)),
		hyperparam.Int("mini_batch_size", "number of records per mini batch",
			hyperparam.IntRange(1, DefaultMaxMiniBatchSize, true, true)),
	)
	e, err := newEstimator(sess, config, hyperparam.NewSet(specs...), func() (string, error) {
		return lib.TrainImage(sess.Region, name, lib.DefaultAlgorithmVersion)
	})
	if err != nil {
		return nil, err
	}
	return &Algorithm{Estimator: e, name: name}, nil
}

// attachAlgorithm rebuilds an algorithm from an existing training job. Keys
// starting with an underscore are platform bookkeeping and are skipped.
func attachAlgorithm(ctx context.Context, sess session.Session, jobName, name string, specs ...hyperparam.Spec) (*Algorithm, error) {
	desc, err := attach(ctx, sess, jobName)
	if err != nil {
		return nil, err
	}
	if base := lib.BaseNameFromImage(desc.Image); base != name {
		return nil, &lib.IllegalStateError{
			Op:     "attach",
			Reason: fmt.Sprintf("training job %s ran %s, not %s", jobName, base, name),
		}
	}
	a, err := newAlgorithm(sess, configFromJob(desc), name, specs...)
	if err != nil {
		return nil, err
	}
	for k, v := range desc.HyperParameters {
		if strings.HasPrefix(k, "_") {
			continue
		}
		if err := a.hyperParameters.SetString(k, v); err != nil {
			return nil, fmt.Errorf("failed to attach to %s: %w", jobName, err)
		}
	}
	a.bindJob(jobName)
	return a, nil
}

// FitRecordSet starts a training job over records. The job is not waited
// on.
func (a *Algorithm) FitRecordSet(ctx context.Context, records lib.RecordSet, miniBatchSize mo.Option[int]) (*TrainingJob, error) {
	set := a.hyperParameters.Clone()
	if err := set.Set("feature_dim", int(records.FeatureDim)); err != nil {
		return nil, err
	}
	if size, ok := miniBatchSize.Get(); ok {
		if err := set.Set("mini_batch_size", size); err != nil {
			return nil, err
		}
	} else if a.defaultMiniBatch != nil {
		if err := set.Set("mini_batch_size", a.defaultMiniBatch(records)); err != nil {
			return nil, err
		}
	} else {
		set.Unset("mini_batch_size")
	}
	name, err := a.jobName()
	if err != nil {
		return nil, err
	}
	return a.submit(ctx, name, set, nil, []lib.Channel{records.DataChannel()})
}

// setOption assigns an optional struct field to set when it is present.
func setOption[T any](set *hyperparam.Set, name string, v mo.Option[T]) error {
	if x, ok := v.Get(); ok {
		return set.Set(name, x)
	}
	return nil
}

// optionOf reads name back from set as a T.
func optionOf[T any](set *hyperparam.Set, name string) mo.Option[T] {
	v, ok := set.Get(name).Get()
	if !ok {
		return mo.None[T]()
	}
	t, ok := v.(T)
	if !ok {
		return mo.None[T]()
	}
	return mo.Some(t)
}

// eachPrediction calls fn with every element of the array at key in a JSON
// response body.
func eachPrediction(body []byte, key string, fn func(item []byte) error) error {
	var ferr error
	_, err := jsonparser.ArrayEach(body, func(item []byte, _ jsonparser.ValueType, _ int, _ error) {
		if ferr == nil {
			ferr = fn(item)
		}
	}, key)
	if err != nil {
		return fmt.Errorf("failed to read %q from response: %w", key, err)
	}
	return ferr
}

func floatsAt(item []byte, key string) ([]float64, error) {
	var out []float64
	var ferr error
	_, err := jsonparser.ArrayEach(item, func(v []byte, _ jsonparser.ValueType, _ int, _ error) {
		if ferr != nil {
			return
		}
		f, err := jsonparser.ParseFloat(v)
		if err != nil {
			ferr = fmt.Errorf("%s: %w", key, err)
			return
		}
		out = append(out, f)
	}, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q from prediction: %w", key, err)
	}
	return out, ferr
}
