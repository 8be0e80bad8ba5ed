package sagemaker

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
	"sagekit/lib/timer"
)

const endpointFailed = "Failed"

// CreateModel registers model. A model of the same name that already exists
// is kept and reused, so concurrent callers racing on a name both succeed.
func (smc SMClient) CreateModel(ctx context.Context, model lib.Model) error {
	defer timer.Start("sagemaker.CreateModel").Stop()
	container := &sagemaker.ContainerDefinition{
		Image:        aws.String(model.Image),
		ModelDataUrl: aws.String(model.ArtifactURI),
	}
	if len(model.Environment) > 0 {
		container.Environment = aws.StringMap(model.Environment)
	}
	role := model.Role
	if role == "" {
		role = smc.args.SagemakerExecutionRole
	}
	_, err := smc.metadataClient.CreateModelWithContext(ctx, &sagemaker.CreateModelInput{
		ModelName:        aws.String(model.Name),
		ExecutionRoleArn: aws.String(role),
		PrimaryContainer: container,
		VpcConfig:        smc.vpcConfig(),
	})
	if isAlreadyExists(err, "model") {
		smc.logger.Info("using already existing model", zap.String("model", model.Name))
		return nil
	}
	if err != nil {
		return transportError("create model", err)
	}
	smc.logger.Info("created model", zap.String("model", model.Name), zap.String("artifact", model.ArtifactURI))
	return nil
}

func (smc SMClient) ModelExists(ctx context.Context, modelName string) (bool, error) {
	_, err := smc.metadataClient.DescribeModelWithContext(ctx, &sagemaker.DescribeModelInput{
		ModelName: aws.String(modelName),
	})
	if err != nil {
		if isNotFound(err, "model") {
			return false, nil
		}
		return false, transportError("check if model exists", err)
	}
	return true, nil
}

func (smc SMClient) CreateEndpointConfig(ctx context.Context, cfg lib.EndpointConfig) error {
	defer timer.Start("sagemaker.CreateEndpointConfig").Stop()
	variant := cfg.VariantName
	if variant == "" {
		variant = "AllTraffic"
	}
	_, err := smc.metadataClient.CreateEndpointConfigWithContext(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(cfg.Name),
		ProductionVariants: []*sagemaker.ProductionVariant{
			{
				ModelName:            aws.String(cfg.ModelName),
				VariantName:          aws.String(variant),
				InstanceType:         aws.String(cfg.InstanceType),
				InitialInstanceCount: aws.Int64(int64(cfg.InstanceCount)),
			},
		},
	})
	if err != nil {
		return transportError("create endpoint config", err)
	}
	return nil
}

func (smc SMClient) EndpointConfigExists(ctx context.Context, endpointConfigName string) (bool, error) {
	_, err := smc.metadataClient.DescribeEndpointConfigWithContext(ctx, &sagemaker.DescribeEndpointConfigInput{
		EndpointConfigName: aws.String(endpointConfigName),
	})
	if err != nil {
		if isNotFound(err, "endpoint config") {
			return false, nil
		}
		return false, transportError("check if endpoint config exists", err)
	}
	return true, nil
}

func (smc SMClient) CreateEndpoint(ctx context.Context, endpoint lib.Endpoint) error {
	defer timer.Start("sagemaker.CreateEndpoint").Stop()
	_, err := smc.metadataClient.CreateEndpointWithContext(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(endpoint.Name),
		EndpointConfigName: aws.String(endpoint.EndpointConfigName),
	})
	if err != nil {
		return transportError("create endpoint", err)
	}
	smc.logger.Info("creating endpoint", zap.String("endpoint", endpoint.Name))
	return nil
}

// WaitForEndpoint blocks until the endpoint is in service. An endpoint that
// fails to come up is reported as a *lib.JobFailedError.
func (smc SMClient) WaitForEndpoint(ctx context.Context, name string) (lib.Endpoint, error) {
	defer timer.Start("sagemaker.WaitForEndpoint").Stop()
	input := &sagemaker.DescribeEndpointInput{EndpointName: aws.String(name)}
	waitErr := smc.metadataClient.WaitUntilEndpointInServiceWithContext(ctx, input)
	out, err := smc.metadataClient.DescribeEndpointWithContext(ctx, input)
	if err != nil {
		if waitErr != nil {
			err = waitErr
		}
		return lib.Endpoint{}, transportError("wait for endpoint", err)
	}
	endpoint := lib.Endpoint{
		Name:               aws.StringValue(out.EndpointName),
		EndpointConfigName: aws.StringValue(out.EndpointConfigName),
		Status:             aws.StringValue(out.EndpointStatus),
	}
	if endpoint.Status == endpointFailed {
		return endpoint, &lib.JobFailedError{Name: name, Status: endpoint.Status, Reason: aws.StringValue(out.FailureReason)}
	}
	if waitErr != nil {
		return endpoint, transportError("wait for endpoint", waitErr)
	}
	return endpoint, nil
}

func (smc SMClient) EndpointExists(ctx context.Context, endpointName string) (bool, error) {
	_, err := smc.metadataClient.DescribeEndpointWithContext(ctx, &sagemaker.DescribeEndpointInput{
		EndpointName: aws.String(endpointName),
	})
	if err != nil {
		if isNotFound(err, "endpoint") {
			return false, nil
		}
		return false, transportError("check if endpoint exists", err)
	}
	return true, nil
}

func (smc SMClient) DeleteModel(ctx context.Context, modelName string) error {
	defer timer.Start("sagemaker.DeleteModel").Stop()
	_, err := smc.metadataClient.DeleteModelWithContext(ctx, &sagemaker.DeleteModelInput{
		ModelName: aws.String(modelName),
	})
	if err != nil {
		return transportError("delete model", err)
	}
	return nil
}

func (smc SMClient) DeleteEndpointConfig(ctx context.Context, endpointConfigName string) error {
	defer timer.Start("sagemaker.DeleteEndpointConfig").Stop()
	_, err := smc.metadataClient.DeleteEndpointConfigWithContext(ctx, &sagemaker.DeleteEndpointConfigInput{
		EndpointConfigName: aws.String(endpointConfigName),
	})
	if err != nil {
		return transportError("delete endpoint config", err)
	}
	return nil
}

// DeleteEndpoint returns once the endpoint is gone.
func (smc SMClient) DeleteEndpoint(ctx context.Context, endpointName string) error {
	defer timer.Start("sagemaker.DeleteEndpoint").Stop()
	input := &sagemaker.DeleteEndpointInput{EndpointName: aws.String(endpointName)}
	if _, err := smc.metadataClient.DeleteEndpointWithContext(ctx, input); err != nil {
		return transportError("delete endpoint", err)
	}
	smc.logger.Info("waiting for endpoint to be deleted", zap.String("endpoint", endpointName))
	err := smc.metadataClient.WaitUntilEndpointDeletedWithContext(ctx, &sagemaker.DescribeEndpointInput{
		EndpointName: aws.String(endpointName),
	})
	if err != nil {
		return transportError("wait for endpoint deletion", err)
	}
	return nil
}
