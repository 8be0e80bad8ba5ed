package job

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/samber/mo"

	"sagekit/db"
	lib "sagekit/lib/sagemaker"
)

func InsertTrainingJob(conn db.Connection, rec lib.TrainingJobRecord) error {
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = rec.CreatedAt
	}
	_, err := conn.NamedExec(`
		INSERT INTO training_job (
			name,
			image,
			status,
			artifact_uri,
			failure_reason,
			hyperparameters,
			created_at,
			updated_at
		) VALUES (
			:name,
			:image,
			:status,
			:artifact_uri,
			:failure_reason,
			:hyperparameters,
			:created_at,
			:updated_at
		)
	`, rec)
	if err != nil {
		return fmt.Errorf("failed to create training job entry in db: %w", err)
	}
	return nil
}

// UpdateTrainingJob records the latest known state of a job. It fails with
// sql.ErrNoRows when the job was never inserted.
func UpdateTrainingJob(conn db.Connection, desc lib.TrainingJobDescription, updatedAt int64) error {
	res, err := conn.Exec(`
		UPDATE training_job
		SET status=?, artifact_uri=?, failure_reason=?, updated_at=?
		WHERE name=?
	`, desc.Status, desc.ArtifactURI, desc.FailureReason, updatedAt, desc.Name)
	if err != nil {
		return fmt.Errorf("failed to update training job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update training job: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("training job %s: %w", desc.Name, sql.ErrNoRows)
	}
	return nil
}

func GetTrainingJob(conn db.Connection, name string) (mo.Option[lib.TrainingJobRecord], error) {
	var rec lib.TrainingJobRecord
	err := conn.Get(&rec, `
		SELECT *
		FROM training_job
		WHERE name=?
	`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[lib.TrainingJobRecord](), nil
	}
	if err != nil {
		return mo.None[lib.TrainingJobRecord](), fmt.Errorf("failed to get training job: %w", err)
	}
	return mo.Some(rec), nil
}

// ListTrainingJobs returns jobs oldest first. An empty status lists every job.
func ListTrainingJobs(conn db.Connection, status lib.JobStatus) ([]lib.TrainingJobRecord, error) {
	var recs []lib.TrainingJobRecord
	var err error
	if status == "" {
		err = conn.Select(&recs, `SELECT * FROM training_job ORDER BY created_at, name`)
	} else {
		err = conn.Select(&recs, `SELECT * FROM training_job WHERE status=? ORDER BY created_at, name`, status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list training jobs: %w", err)
	}
	return recs, nil
}

func InsertEndpoint(conn db.Connection, rec lib.EndpointRecord) error {
	// Mark previous instances of this endpoint as not-active and then insert
	// the new endpoint, in one txn so that at most one row is active.
	txn, err := conn.Beginx()
	if err != nil {
		return fmt.Errorf("failed to start txn: %w", err)
	}
	defer txn.Rollback()
	if _, err = txn.Exec(`UPDATE endpoint SET active=0 WHERE name=?`, rec.Name); err != nil {
		return fmt.Errorf("failed to deactivate endpoint: %w", err)
	}
	_, err = txn.Exec(`
		INSERT INTO endpoint (
			name,
			endpoint_config_name,
			model_name,
			active,
			created_at
		) VALUES (
			?, ?, ?, 1, ?
		)
	`, rec.Name, rec.EndpointConfigName, rec.ModelName, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create endpoint entry in db: %w", err)
	}
	if err = txn.Commit(); err != nil {
		return fmt.Errorf("failed to create endpoint entry in db: %w", err)
	}
	return nil
}

func GetEndpoint(conn db.Connection, name string) (mo.Option[lib.EndpointRecord], error) {
	var rec lib.EndpointRecord
	err := conn.Get(&rec, `
		SELECT *
		FROM endpoint
		WHERE name=? AND active=1
	`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[lib.EndpointRecord](), nil
	}
	if err != nil {
		return mo.None[lib.EndpointRecord](), fmt.Errorf("failed to get endpoint: %w", err)
	}
	return mo.Some(rec), nil
}

func GetActiveEndpoints(conn db.Connection) ([]lib.EndpointRecord, error) {
	var recs []lib.EndpointRecord
	err := conn.Select(&recs, `
		SELECT *
		FROM endpoint
		WHERE active=1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active endpoints: %w", err)
	}
	return recs, nil
}

func MakeEndpointInactive(conn db.Connection, name string) error {
	_, err := conn.Exec(`
		UPDATE endpoint
		SET active=0
		WHERE name=?
	`, name)
	if err != nil {
		return fmt.Errorf("failed to make endpoint inactive: %w", err)
	}
	return nil
}
