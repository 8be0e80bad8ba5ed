package sagemaker

import (
	"context"
	"io"
)

type TrainingService interface {
	CreateTrainingJob(ctx context.Context, req TrainingJobRequest) error
	DescribeTrainingJob(ctx context.Context, name string) (TrainingJobDescription, error)
	// WaitForTrainingJob blocks until the job reaches a terminal status.
	WaitForTrainingJob(ctx context.Context, name string) (TrainingJobDescription, error)
	StopTrainingJob(ctx context.Context, name string) error
}

type TransformService interface {
	CreateTransformJob(ctx context.Context, req TransformJobRequest) error
	DescribeTransformJob(ctx context.Context, name string) (TransformJobDescription, error)
	WaitForTransformJob(ctx context.Context, name string) (TransformJobDescription, error)
}

type HostingService interface {
	CreateModel(ctx context.Context, model Model) error
	CreateEndpointConfig(ctx context.Context, cfg EndpointConfig) error
	CreateEndpoint(ctx context.Context, endpoint Endpoint) error
	WaitForEndpoint(ctx context.Context, name string) (Endpoint, error)

	ModelExists(ctx context.Context, name string) (bool, error)
	EndpointConfigExists(ctx context.Context, name string) (bool, error)
	EndpointExists(ctx context.Context, name string) (bool, error)

	DeleteModel(ctx context.Context, name string) error
	DeleteEndpointConfig(ctx context.Context, name string) error
	DeleteEndpoint(ctx context.Context, name string) error
}

type InferenceServer interface {
	Invoke(ctx context.Context, req InvokeRequest) (InvokeResponse, error)
}

// Platform is the full control and data plane surface the estimators use.
type Platform interface {
	TrainingService
	TransformService
	HostingService
	InferenceServer
}

// ObjectStore is where training data and packaged source code are uploaded.
type ObjectStore interface {
	Upload(ctx context.Context, body io.Reader, bucket, key string) error
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
}
