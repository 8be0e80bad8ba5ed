package sagemaker

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// TrainingJobRecord is the ledger row kept for every submitted training job.
type TrainingJobRecord struct {
	Name            string            `db:"name"`
	Image           string            `db:"image"`
	Status          JobStatus         `db:"status"`
	ArtifactURI     string            `db:"artifact_uri"`
	FailureReason   string            `db:"failure_reason"`
	HyperParameters HyperParameterMap `db:"hyperparameters"`
	CreatedAt       int64             `db:"created_at"`
	UpdatedAt       int64             `db:"updated_at"`
}

// EndpointRecord is the ledger row of a deployed endpoint. Redeploying an
// endpoint name deactivates its previous rows.
type EndpointRecord struct {
	ID                 uint64 `db:"id"`
	Name               string `db:"name"`
	EndpointConfigName string `db:"endpoint_config_name"`
	ModelName          string `db:"model_name"`
	Active             bool   `db:"active"`
	CreatedAt          int64  `db:"created_at"`
}

// HyperParameterMap is stored as a JSON object.
type HyperParameterMap map[string]string

func (m HyperParameterMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *HyperParameterMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = HyperParameterMap{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into hyperparameters", src)
	}
	ret := map[string]string{}
	if err := json.Unmarshal(raw, &ret); err != nil {
		return fmt.Errorf("invalid hyperparameters %q: %w", raw, err)
	}
	*m = ret
	return nil
}
