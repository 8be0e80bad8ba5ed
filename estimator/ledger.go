package estimator

import (
	"database/sql"
	"errors"

	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
	"sagekit/model/job"
	"sagekit/session"
)

// The ledger is a local record of what was started remotely. Failing to
// write it never fails the remote operation; it is logged instead.

func recordTrainingJob(sess session.Session, req lib.TrainingJobRequest) {
	conn, ok := sess.Ledger.Get()
	if !ok {
		return
	}
	now := sess.Clock.Now().Unix()
	err := job.InsertTrainingJob(conn, lib.TrainingJobRecord{
		Name:            req.Name,
		Image:           req.Image,
		Status:          lib.JobInProgress,
		HyperParameters: req.HyperParameters,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		sess.Logger.Warn("failed to record training job", zap.String("job", req.Name), zap.Error(err))
	}
}

func updateTrainingJob(sess session.Session, desc lib.TrainingJobDescription) {
	conn, ok := sess.Ledger.Get()
	if !ok {
		return
	}
	now := sess.Clock.Now().Unix()
	err := job.UpdateTrainingJob(conn, desc, now)
	if errors.Is(err, sql.ErrNoRows) {
		// attached jobs were started elsewhere
		err = job.InsertTrainingJob(conn, lib.TrainingJobRecord{
			Name:            desc.Name,
			Image:           desc.Image,
			Status:          desc.Status,
			ArtifactURI:     desc.ArtifactURI,
			FailureReason:   desc.FailureReason,
			HyperParameters: desc.HyperParameters,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if err != nil {
		sess.Logger.Warn("failed to update training job", zap.String("job", desc.Name), zap.Error(err))
	}
}

func recordEndpoint(sess session.Session, cfg lib.EndpointConfig, endpoint string) {
	conn, ok := sess.Ledger.Get()
	if !ok {
		return
	}
	err := job.InsertEndpoint(conn, lib.EndpointRecord{
		Name:               endpoint,
		EndpointConfigName: cfg.Name,
		ModelName:          cfg.ModelName,
		CreatedAt:          sess.Clock.Now().Unix(),
	})
	if err != nil {
		sess.Logger.Warn("failed to record endpoint", zap.String("endpoint", endpoint), zap.Error(err))
	}
}

func deactivateEndpoint(sess session.Session, endpoint string) {
	conn, ok := sess.Ledger.Get()
	if !ok {
		return
	}
	if err := job.MakeEndpointInactive(conn, endpoint); err != nil {
		sess.Logger.Warn("failed to deactivate endpoint", zap.String("endpoint", endpoint), zap.Error(err))
	}
}
