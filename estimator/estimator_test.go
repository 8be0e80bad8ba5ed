package estimator_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagekit/estimator"
	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
	"sagekit/model/job"
	"sagekit/test"
)

const (
	ntmImage = "174872318107.dkr.ecr.us-west-2.amazonaws.com/ntm:1"
	ntmJob   = "ntm-2018-11-05-10-30-15-123"
)

var trainConfig = estimator.Config{
	Role:          "myrole",
	InstanceCount: 1,
	InstanceType:  "ml.c4.xlarge",
}

func recordSet(t *testing.T) lib.RecordSet {
	rs, err := lib.NewRecordSet("s3://"+test.Bucket+"/prefix", 1, 10, "train")
	require.NoError(t, err)
	return rs
}

func newNTM(t *testing.T, env test.Env) *estimator.NTM {
	ntm, err := estimator.NewNTM(env.Session, trainConfig, estimator.NTMHyperParameters{NumTopics: 5})
	require.NoError(t, err)
	return ntm
}

// fitNTM trains an NTM to completion.
func fitNTM(t *testing.T, env test.Env) *estimator.NTM {
	ctx := context.Background()
	ntm := newNTM(t, env)
	j, err := ntm.FitRecordSet(ctx, recordSet(t), mo.Some(200))
	require.NoError(t, err)
	_, err = j.Wait(ctx)
	require.NoError(t, err)
	return ntm
}

func TestConfigValidation(t *testing.T) {
	env := test.Session(t)
	hps := estimator.NTMHyperParameters{NumTopics: 5}

	cfg := trainConfig
	cfg.InstanceCount = 0
	_, err := estimator.NewNTM(env.Session, cfg, hps)
	assert.ErrorIs(t, err, hyperparam.ErrOutOfRange)

	cfg = trainConfig
	cfg.InstanceType = ""
	_, err = estimator.NewNTM(env.Session, cfg, hps)
	assert.ErrorIs(t, err, hyperparam.ErrInvalid)

	// the session role is used when none is given
	cfg = trainConfig
	cfg.Role = ""
	ntm, err := estimator.NewNTM(env.Session, cfg, hps)
	require.NoError(t, err)
	assert.Equal(t, test.Role, ntm.Config().Role)
	assert.Equal(t, uint(estimator.DefaultVolumeSizeGB), ntm.Config().VolumeSizeGB)
	assert.Equal(t, estimator.DefaultMaxRuntime, ntm.Config().MaxRuntime)
}

func TestFitSubmitsTrainingJob(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := newNTM(t, env)

	j, err := ntm.FitRecordSet(ctx, recordSet(t), mo.Some(200))
	require.NoError(t, err)
	assert.Equal(t, ntmJob, j.Name)
	assert.Equal(t, j, ntm.LatestTrainingJob().MustGet())

	require.Len(t, env.Platform.TrainingRequests, 1)
	req := env.Platform.TrainingRequests[0]
	assert.Equal(t, lib.TrainingJobRequest{
		Name:      ntmJob,
		Image:     ntmImage,
		Role:      "myrole",
		Resources: lib.ResourceConfig{InstanceCount: 1, InstanceType: "ml.c4.xlarge", VolumeSizeGB: 30},
		HyperParameters: map[string]string{
			"num_topics":      "5",
			"feature_dim":     "10",
			"mini_batch_size": "200",
		},
		Inputs: []lib.Channel{{
			Name:         "train",
			S3URI:        "s3://" + test.Bucket + "/prefix",
			S3DataType:   lib.ManifestFile,
			Distribution: lib.ShardedByS3Key,
		}},
		OutputPath: "s3://" + test.Bucket + "/",
		MaxRuntime: 24 * time.Hour,
	}, req)

	rec, err := job.GetTrainingJob(env.Session.Ledger.MustGet(), ntmJob)
	require.NoError(t, err)
	assert.Equal(t, lib.JobInProgress, rec.MustGet().Status)
	assert.Equal(t, "200", rec.MustGet().HyperParameters["mini_batch_size"])
}

func TestFitMiniBatchSize(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := newNTM(t, env)

	for _, size := range []int{0, 10001} {
		_, err := ntm.FitRecordSet(ctx, recordSet(t), mo.Some(size))
		assert.ErrorIs(t, err, hyperparam.ErrOutOfRange)
	}
	assert.Empty(t, env.Platform.CallsTo("CreateTrainingJob"))
	// rejected fits leave the estimator untouched
	assert.True(t, ntm.HyperParameter("feature_dim").IsAbsent())
	assert.True(t, ntm.LatestTrainingJob().IsAbsent())

	_, err := ntm.FitRecordSet(ctx, recordSet(t), mo.None[int]())
	require.NoError(t, err)
	hps := env.Platform.TrainingRequests[0].HyperParameters
	assert.NotContains(t, hps, "mini_batch_size")
	assert.Equal(t, "10", hps["feature_dim"])
}

func TestFitOutputPathAndBaseName(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	cfg := trainConfig
	cfg.OutputPath = "s3://other/models"
	cfg.BaseJobName = "topics"
	ntm, err := estimator.NewNTM(env.Session, cfg, estimator.NTMHyperParameters{NumTopics: 5})
	require.NoError(t, err)

	j, err := ntm.FitRecordSet(ctx, recordSet(t), mo.None[int]())
	require.NoError(t, err)
	assert.Equal(t, "topics-2018-11-05-10-30-15-123", j.Name)
	assert.Equal(t, "s3://other/models", env.Platform.TrainingRequests[0].OutputPath)
}

func TestFitTransportError(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	cause := errors.New("throttled")
	env.Platform.Errors["CreateTrainingJob"] = cause
	ntm := newNTM(t, env)

	_, err := ntm.FitRecordSet(ctx, recordSet(t), mo.Some(200))
	var terr *lib.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, cause, terr.Err)
	assert.True(t, ntm.LatestTrainingJob().IsAbsent())

	recs, err := job.ListTrainingJobs(env.Session.Ledger.MustGet(), "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCreateModelRequiresCompletedJob(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := newNTM(t, env)

	_, err := ntm.CreateModel(ctx)
	assert.ErrorIs(t, err, lib.ErrIllegalState)
	_, err = ntm.Deploy(ctx, 1, "ml.c4.xlarge")
	assert.ErrorIs(t, err, lib.ErrIllegalState)

	_, err = ntm.FitRecordSet(ctx, recordSet(t), mo.Some(200))
	require.NoError(t, err)
	_, err = ntm.CreateModel(ctx)
	assert.ErrorIs(t, err, lib.ErrIllegalState)
	assert.Empty(t, env.Platform.CallsTo("CreateModel"))
}

func TestTrainingJobLifecycle(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := newNTM(t, env)
	j, err := ntm.FitRecordSet(ctx, recordSet(t), mo.Some(200))
	require.NoError(t, err)

	desc, err := j.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, lib.JobInProgress, desc.Status)

	env.Clock.Add(time.Minute)
	desc, err = j.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, lib.JobCompleted, desc.Status)

	rec, err := job.GetTrainingJob(env.Session.Ledger.MustGet(), ntmJob)
	require.NoError(t, err)
	assert.Equal(t, lib.JobCompleted, rec.MustGet().Status)
	assert.Equal(t, desc.ArtifactURI, rec.MustGet().ArtifactURI)
	assert.Equal(t, env.Clock.Now().Unix(), rec.MustGet().UpdatedAt)

	m, err := ntm.CreateModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, ntmJob, m.Name)
	assert.Equal(t, "s3://"+test.Bucket+"/"+ntmJob+"/output/model.tar.gz", m.ArtifactURI)
	image, err := m.Image("ml.c4.xlarge")
	require.NoError(t, err)
	assert.Equal(t, ntmImage, image)
}

func TestTrainingJobFailure(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	env.Platform.FailJobs[ntmJob] = "ClientError: bad data"
	ntm := newNTM(t, env)
	j, err := ntm.FitRecordSet(ctx, recordSet(t), mo.Some(200))
	require.NoError(t, err)

	_, err = j.Wait(ctx)
	var failed *lib.JobFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "ClientError: bad data", failed.Reason)

	rec, err := job.GetTrainingJob(env.Session.Ledger.MustGet(), ntmJob)
	require.NoError(t, err)
	assert.Equal(t, lib.JobFailed, rec.MustGet().Status)
	assert.Equal(t, "ClientError: bad data", rec.MustGet().FailureReason)

	_, err = ntm.CreateModel(ctx)
	assert.ErrorIs(t, err, lib.ErrIllegalState)
}

func TestTrainingJobStop(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := newNTM(t, env)
	j, err := ntm.FitRecordSet(ctx, recordSet(t), mo.Some(200))
	require.NoError(t, err)

	require.NoError(t, j.Stop(ctx))
	desc, err := j.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, lib.JobStopped, desc.Status)
}

func TestDeployPredictDelete(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := fitNTM(t, env)

	m, err := ntm.Estimator.CreateModel(ctx)
	require.NoError(t, err)
	p, err := m.Deploy(ctx, 2, "ml.m4.xlarge")
	require.NoError(t, err)
	assert.Equal(t, ntmJob, p.EndpointName)

	assert.Equal(t, lib.Model{
		Name:        ntmJob,
		Image:       ntmImage,
		ArtifactURI: "s3://" + test.Bucket + "/" + ntmJob + "/output/model.tar.gz",
		Role:        "myrole",
	}, env.Platform.Models[ntmJob])
	assert.Equal(t, lib.EndpointConfig{
		Name:          ntmJob,
		ModelName:     ntmJob,
		InstanceType:  "ml.m4.xlarge",
		InstanceCount: 2,
	}, env.Platform.EndpointConfigs[ntmJob])
	assert.Equal(t, "InService", env.Platform.Endpoints[ntmJob].Status)

	conn := env.Session.Ledger.MustGet()
	rec, err := job.GetEndpoint(conn, ntmJob)
	require.NoError(t, err)
	assert.Equal(t, ntmJob, rec.MustGet().ModelName)

	out, err := p.Predict(ctx, map[string]interface{}{"instances": []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"instances":[1,2]}`, string(env.Platform.Invocations[0].Body))
	assert.Equal(t, estimator.ContentTypeJSON, env.Platform.Invocations[0].ContentType)
	assert.Equal(t, estimator.ContentTypeJSON, env.Platform.Invocations[0].Accept)
	js, ok := out.(*simplejson.Json)
	require.True(t, ok)
	assert.Equal(t, []interface{}{json.Number("1"), json.Number("2")}, js.Get("instances").MustArray())

	require.NoError(t, p.Delete(ctx))
	assert.Empty(t, env.Platform.Endpoints)
	assert.Empty(t, env.Platform.EndpointConfigs)
	rec, err = job.GetEndpoint(conn, ntmJob)
	require.NoError(t, err)
	assert.True(t, rec.IsAbsent())
}

func TestPredictTransportErrorIsUnchanged(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := fitNTM(t, env)
	p, err := ntm.Deploy(ctx, 1, "ml.m4.xlarge")
	require.NoError(t, err)

	cause := errors.New("model error")
	env.Platform.Errors["Invoke"] = cause
	_, err = p.Predict(ctx, []float64{1, 2})
	var terr *lib.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "Invoke", terr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestDeployValidatesInstances(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := fitNTM(t, env)

	_, err := ntm.Deploy(ctx, 0, "ml.m4.xlarge")
	assert.ErrorIs(t, err, hyperparam.ErrOutOfRange)
	assert.Empty(t, env.Platform.CallsTo("CreateModel"))
}

func TestDeployThenTransformerReusesModel(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := fitNTM(t, env)

	p, err := ntm.Deploy(ctx, 1, "ml.m4.xlarge")
	require.NoError(t, err)
	tr, err := ntm.Transformer(ctx, 1, "ml.m4.xlarge", estimator.TransformerOptions{})
	require.NoError(t, err)
	assert.Equal(t, ntmJob, tr.ModelName)
	assert.Len(t, env.Platform.CallsTo("CreateModel"), 1)

	// the endpoint is live, a second deploy has to wait for a delete
	_, err = ntm.Deploy(ctx, 1, "ml.m4.xlarge")
	assert.ErrorIs(t, err, lib.ErrIllegalState)
	assert.Len(t, env.Platform.CallsTo("CreateEndpoint"), 1)

	require.NoError(t, p.Delete(ctx))
	_, err = ntm.Deploy(ctx, 1, "ml.m4.xlarge")
	require.NoError(t, err)
	assert.Len(t, env.Platform.CallsTo("CreateModel"), 1)
	assert.Len(t, env.Platform.CallsTo("CreateEndpoint"), 2)
}

func TestDeployReusesLeftoverEndpointConfig(t *testing.T) {
	ctx := context.Background()
	env := test.Session(t)
	ntm := fitNTM(t, env)

	env.Platform.Errors["CreateEndpoint"] = errors.New("ResourceLimitExceeded")
	_, err := ntm.Deploy(ctx, 1, "ml.m4.xlarge")
	require.Error(t, err)
	assert.Contains(t, env.Platform.EndpointConfigs, ntmJob)

	delete(env.Platform.Errors, "CreateEndpoint")
	p, err := ntm.Deploy(ctx, 1, "ml.m4.xlarge")
	require.NoError(t, err)
	assert.Equal(t, ntmJob, p.EndpointName)
	assert.Len(t, env.Platform.CallsTo("CreateEndpointConfig"), 1)
	assert.Len(t, env.Platform.CallsTo("CreateModel"), 1)
}
