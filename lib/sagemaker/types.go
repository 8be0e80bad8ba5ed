package sagemaker

import (
	"fmt"
	"time"
)

const (
	S3Prefix        = "S3Prefix"
	ManifestFile    = "ManifestFile"
	FullyReplicated = "FullyReplicated"
	ShardedByS3Key  = "ShardedByS3Key"
)

// RecordSet references a dataset already in object storage. It does not own
// the data.
type RecordSet struct {
	Location   string
	NumRecords uint64
	FeatureDim uint32
	Channel    string
	DataType   string
}

func NewRecordSet(location string, numRecords uint64, featureDim uint32, channel string) (RecordSet, error) {
	if location == "" {
		return RecordSet{}, fmt.Errorf("record set location must not be empty")
	}
	if featureDim == 0 {
		return RecordSet{}, fmt.Errorf("record set feature_dim must be positive")
	}
	if channel == "" {
		channel = "train"
	}
	return RecordSet{
		Location:   location,
		NumRecords: numRecords,
		FeatureDim: featureDim,
		Channel:    channel,
		DataType:   ManifestFile,
	}, nil
}

// DataChannel returns the input channel first-party algorithms read the
// record set from.
func (r RecordSet) DataChannel() Channel {
	dataType := r.DataType
	if dataType == "" {
		dataType = ManifestFile
	}
	return Channel{
		Name:         r.Channel,
		S3URI:        r.Location,
		S3DataType:   dataType,
		Distribution: ShardedByS3Key,
	}
}

type Channel struct {
	Name         string
	S3URI        string
	S3DataType   string
	Distribution string
	ContentType  string
}

type ResourceConfig struct {
	InstanceCount uint
	InstanceType  string
	VolumeSizeGB  uint
}

type TrainingJobRequest struct {
	Name            string
	Image           string
	Role            string
	Resources       ResourceConfig
	HyperParameters map[string]string
	Inputs          []Channel
	OutputPath      string
	MaxRuntime      time.Duration
}

type JobStatus string

const (
	JobInProgress JobStatus = "InProgress"
	JobCompleted  JobStatus = "Completed"
	JobFailed     JobStatus = "Failed"
	JobStopping   JobStatus = "Stopping"
	JobStopped    JobStatus = "Stopped"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobStopped
}

type TrainingJobDescription struct {
	Name            string
	Image           string
	Role            string
	Status          JobStatus
	FailureReason   string
	ArtifactURI     string
	HyperParameters map[string]string
	Resources       ResourceConfig
	Inputs          []Channel
	OutputPath      string
	MaxRuntime      time.Duration
}

type TransformJobRequest struct {
	Name         string
	ModelName    string
	DataURI      string
	DataType     string
	ContentType  string
	SplitType    string
	Accept       string
	OutputPath   string
	Resources    ResourceConfig
	Strategy     string
	MaxPayloadMB uint
	Environment  map[string]string
}

type TransformJobDescription struct {
	Name          string
	ModelName     string
	Status        JobStatus
	FailureReason string
	OutputPath    string
}

// Model is a trained artifact registered with the hosting service.
type Model struct {
	Name        string
	Image       string
	ArtifactURI string
	Role        string
	Environment map[string]string
}

type EndpointConfig struct {
	Name          string
	VariantName   string
	ModelName     string
	InstanceType  string
	InstanceCount uint
}

type Endpoint struct {
	Name               string
	EndpointConfigName string
	Status             string
}

type InvokeRequest struct {
	EndpointName string
	ContentType  string
	Accept       string
	Body         []byte
}

type InvokeResponse struct {
	ContentType string
	Body        []byte
}
