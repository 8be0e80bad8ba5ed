package estimator

import (
	"context"

	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
	"sagekit/session"
)

// TrainingJob is a handle on a job started or attached by an estimator.
type TrainingJob struct {
	sess session.Session
	Name string
}

func (j *TrainingJob) Describe(ctx context.Context) (lib.TrainingJobDescription, error) {
	return j.sess.Platform.DescribeTrainingJob(ctx, j.Name)
}

// Wait blocks until the job is terminal. A failed job is reported as
// *lib.JobFailedError along with its description.
func (j *TrainingJob) Wait(ctx context.Context) (lib.TrainingJobDescription, error) {
	desc, err := j.sess.Platform.WaitForTrainingJob(ctx, j.Name)
	if desc.Name != "" {
		updateTrainingJob(j.sess, desc)
	}
	if err != nil {
		return desc, err
	}
	j.sess.Logger.Info("training job finished",
		zap.String("job", j.Name),
		zap.String("status", string(desc.Status)),
		zap.String("artifact", desc.ArtifactURI),
	)
	return desc, nil
}

func (j *TrainingJob) Stop(ctx context.Context) error {
	return j.sess.Platform.StopTrainingJob(ctx, j.Name)
}
