package estimator

import (
	"context"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/samber/mo"

	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
	"sagekit/session"
)

const kmeansMiniBatchSize = 5000

func kmeansSpecs() []hyperparam.Spec {
	initMethods := []string{"random", "kmeans++"}
	return []hyperparam.Spec{
		hyperparam.Int("k", "number of clusters", hyperparam.IntLowerBound(1, false)).Require(),
		hyperparam.Enum("init_method", "how the initial centers are chosen", initMethods...),
		hyperparam.Int("local_lloyd_max_iter", "", hyperparam.IntLowerBound(0, false)),
		hyperparam.Float("local_lloyd_tol", "", hyperparam.FloatRange(0, 1, true, true)),
		hyperparam.Int("local_lloyd_num_trials", "", hyperparam.IntLowerBound(0, false)),
		hyperparam.Enum("local_lloyd_init_method", "", initMethods...),
		hyperparam.Int("half_life_time_size", "", hyperparam.IntLowerBound(0, true)),
		hyperparam.Int("epochs", "", hyperparam.IntLowerBound(0, false)),
		hyperparam.Int("extra_center_factor", "", hyperparam.IntLowerBound(0, false)),
		hyperparam.StringList("eval_metrics", "metrics reported on the test channel",
			hyperparam.EachString(hyperparam.StringChoices("msd", "ssd"))),
	}
}

type KMeansHyperParameters struct {
	K                int
	InitMethod       mo.Option[string]
	MaxIterations    mo.Option[int]
	Tolerance        mo.Option[float64]
	NumTrials        mo.Option[int]
	LocalInitMethod  mo.Option[string]
	HalfLifeTimeSize mo.Option[int]
	Epochs           mo.Option[int]
	CenterFactor     mo.Option[int]
	EvalMetrics      mo.Option[[]string]
}

func (h KMeansHyperParameters) apply(set *hyperparam.Set) error {
	if err := set.Set("k", h.K); err != nil {
		return err
	}
	for _, err := range []error{
		setOption(set, "init_method", h.InitMethod),
		setOption(set, "local_lloyd_max_iter", h.MaxIterations),
		setOption(set, "local_lloyd_tol", h.Tolerance),
		setOption(set, "local_lloyd_num_trials", h.NumTrials),
		setOption(set, "local_lloyd_init_method", h.LocalInitMethod),
		setOption(set, "half_life_time_size", h.HalfLifeTimeSize),
		setOption(set, "epochs", h.Epochs),
		setOption(set, "extra_center_factor", h.CenterFactor),
		setOption(set, "eval_metrics", h.EvalMetrics),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// KMeans clusters records with web-scale k-means. The training container
// always reads dense input.
type KMeans struct {
	*Algorithm
}

func newKMeans(a *Algorithm) *KMeans {
	a.fixed = map[string]string{"force_dense": "True"}
	a.defaultMiniBatch = func(lib.RecordSet) int { return kmeansMiniBatchSize }
	return &KMeans{Algorithm: a}
}

func NewKMeans(sess session.Session, config Config, hps KMeansHyperParameters) (*KMeans, error) {
	a, err := newAlgorithm(sess, config, "kmeans", kmeansSpecs()...)
	if err != nil {
		return nil, err
	}
	if err := hps.apply(a.hyperParameters); err != nil {
		return nil, err
	}
	return newKMeans(a), nil
}

func AttachKMeans(ctx context.Context, sess session.Session, jobName string) (*KMeans, error) {
	specs := append(kmeansSpecs(), hyperparam.Enum("force_dense", "", "True"))
	a, err := attachAlgorithm(ctx, sess, jobName, "kmeans", specs...)
	if err != nil {
		return nil, err
	}
	a.hyperParameters.Unset("force_dense")
	return newKMeans(a), nil
}

func (k *KMeans) Params() KMeansHyperParameters {
	set := k.hyperParameters
	return KMeansHyperParameters{
		K:                optionOf[int](set, "k").OrElse(0),
		InitMethod:       optionOf[string](set, "init_method"),
		MaxIterations:    optionOf[int](set, "local_lloyd_max_iter"),
		Tolerance:        optionOf[float64](set, "local_lloyd_tol"),
		NumTrials:        optionOf[int](set, "local_lloyd_num_trials"),
		LocalInitMethod:  optionOf[string](set, "local_lloyd_init_method"),
		HalfLifeTimeSize: optionOf[int](set, "half_life_time_size"),
		Epochs:           optionOf[int](set, "epochs"),
		CenterFactor:     optionOf[int](set, "extra_center_factor"),
		EvalMetrics:      optionOf[[]string](set, "eval_metrics"),
	}
}

func (k *KMeans) SetK(v int) error             { return k.SetHyperParameter("k", v) }
func (k *KMeans) SetInitMethod(v string) error { return k.SetHyperParameter("init_method", v) }
func (k *KMeans) SetMaxIterations(v int) error { return k.SetHyperParameter("local_lloyd_max_iter", v) }
func (k *KMeans) SetTolerance(v float64) error { return k.SetHyperParameter("local_lloyd_tol", v) }
func (k *KMeans) SetNumTrials(v int) error     { return k.SetHyperParameter("local_lloyd_num_trials", v) }
func (k *KMeans) SetLocalInitMethod(v string) error {
	return k.SetHyperParameter("local_lloyd_init_method", v)
}
func (k *KMeans) SetHalfLifeTimeSize(v int) error {
	return k.SetHyperParameter("half_life_time_size", v)
}
func (k *KMeans) SetEpochs(v int) error           { return k.SetHyperParameter("epochs", v) }
func (k *KMeans) SetCenterFactor(v int) error     { return k.SetHyperParameter("extra_center_factor", v) }
func (k *KMeans) SetEvalMetrics(v []string) error { return k.SetHyperParameter("eval_metrics", v) }

func (k *KMeans) CreateModel(ctx context.Context) (*KMeansModel, error) {
	m, err := k.Estimator.CreateModel(ctx)
	if err != nil {
		return nil, err
	}
	return &KMeansModel{Model: m}, nil
}

func (k *KMeans) Deploy(ctx context.Context, instanceCount uint, instanceType string) (*KMeansPredictor, error) {
	m, err := k.CreateModel(ctx)
	if err != nil {
		return nil, err
	}
	return m.Deploy(ctx, instanceCount, instanceType)
}

type KMeansModel struct {
	*Model
}

func (m *KMeansModel) Deploy(ctx context.Context, instanceCount uint, instanceType string) (*KMeansPredictor, error) {
	p, err := m.Model.Deploy(ctx, instanceCount, instanceType)
	if err != nil {
		return nil, err
	}
	return NewKMeansPredictor(p), nil
}

// Cluster is the assignment of one record.
type Cluster struct {
	ClosestCluster    int
	DistanceToCluster float64
}

type KMeansPredictor struct {
	*Predictor
}

func NewKMeansPredictor(p *Predictor) *KMeansPredictor {
	p.Serializer = RecordSerializer{}
	p.Deserializer = JSONDeserializer{}
	return &KMeansPredictor{Predictor: p}
}

// Clusters assigns every row to its closest center.
func (p *KMeansPredictor) Clusters(ctx context.Context, rows [][]float64) ([]Cluster, error) {
	body, err := p.Serializer.Serialize(rows)
	if err != nil {
		return nil, err
	}
	resp, err := p.PredictRaw(ctx, body, ContentTypeJSON, ContentTypeJSON)
	if err != nil {
		return nil, err
	}
	var clusters []Cluster
	err = eachPrediction(resp.Body, "predictions", func(item []byte) error {
		closest, err := jsonparser.GetFloat(item, "closest_cluster")
		if err != nil {
			return fmt.Errorf("failed to read closest_cluster: %w", err)
		}
		distance, err := jsonparser.GetFloat(item, "distance_to_cluster")
		if err != nil {
			return fmt.Errorf("failed to read distance_to_cluster: %w", err)
		}
		clusters = append(clusters, Cluster{ClosestCluster: int(closest), DistanceToCluster: distance})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clusters, nil
}
