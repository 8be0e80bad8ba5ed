package estimator

import (
	"time"

	"sagekit/lib/hyperparam"
	lib "sagekit/lib/sagemaker"
)

const (
	DefaultVolumeSizeGB = 30
	DefaultMaxRuntime   = 24 * time.Hour
)

// Config holds the settings every estimator shares. Zero values of the
// optional fields are replaced by the defaults above and the session.
type Config struct {
	Role          string
	InstanceCount uint
	InstanceType  string
	VolumeSizeGB  uint
	MaxRuntime    time.Duration
	// OutputPath is where training artifacts are written, by default the
	// session's default output path.
	OutputPath  string
	BaseJobName string
}

func (c Config) withDefaults() Config {
	if c.VolumeSizeGB == 0 {
		c.VolumeSizeGB = DefaultVolumeSizeGB
	}
	if c.MaxRuntime == 0 {
		c.MaxRuntime = DefaultMaxRuntime
	}
	return c
}

func (c Config) validate() error {
	if c.Role == "" {
		return &hyperparam.ValidationError{Field: "role", Value: c.Role, Constraint: "non-empty", Err: hyperparam.ErrInvalid}
	}
	if err := validateInstances(c.InstanceCount, c.InstanceType); err != nil {
		return err
	}
	if c.MaxRuntime < time.Second {
		return &hyperparam.ValidationError{Field: "max_runtime", Value: c.MaxRuntime, Constraint: ">= 1s", Err: hyperparam.ErrOutOfRange}
	}
	return nil
}

func (c Config) resources() lib.ResourceConfig {
	return lib.ResourceConfig{
		InstanceCount: c.InstanceCount,
		InstanceType:  c.InstanceType,
		VolumeSizeGB:  c.VolumeSizeGB,
	}
}

func validateInstances(count uint, instanceType string) error {
	if count == 0 {
		return &hyperparam.ValidationError{Field: "instance_count", Value: count, Constraint: ">= 1", Err: hyperparam.ErrOutOfRange}
	}
	if instanceType == "" {
		return &hyperparam.ValidationError{Field: "instance_type", Value: instanceType, Constraint: "non-empty", Err: hyperparam.ErrInvalid}
	}
	return nil
}

// configFromJob rebuilds the config of an existing job.
func configFromJob(desc lib.TrainingJobDescription) Config {
	return Config{
		Role:          desc.Role,
		InstanceCount: desc.Resources.InstanceCount,
		InstanceType:  desc.Resources.InstanceType,
		VolumeSizeGB:  desc.Resources.VolumeSizeGB,
		MaxRuntime:    desc.MaxRuntime,
		OutputPath:    desc.OutputPath,
		BaseJobName:   lib.BaseNameFromImage(desc.Image),
	}
}
