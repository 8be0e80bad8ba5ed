package sagemaker

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
	"sagekit/lib/timer"
)

func (smc SMClient) CreateTransformJob(ctx context.Context, req lib.TransformJobRequest) error {
	defer timer.Start("sagemaker.CreateTransformJob").Stop()
	dataType := req.DataType
	if dataType == "" {
		dataType = lib.S3Prefix
	}
	input := sagemaker.CreateTransformJobInput{
		TransformJobName: aws.String(req.Name),
		ModelName:        aws.String(req.ModelName),
		TransformInput: &sagemaker.TransformInput{
			DataSource: &sagemaker.TransformDataSource{
				S3DataSource: &sagemaker.TransformS3DataSource{
					S3DataType: aws.String(dataType),
					S3Uri:      aws.String(req.DataURI),
				},
			},
		},
		TransformOutput: &sagemaker.TransformOutput{
			S3OutputPath: aws.String(req.OutputPath),
		},
		TransformResources: &sagemaker.TransformResources{
			InstanceCount: aws.Int64(int64(req.Resources.InstanceCount)),
			InstanceType:  aws.String(req.Resources.InstanceType),
		},
	}
	if req.ContentType != "" {
		input.TransformInput.ContentType = aws.String(req.ContentType)
	}
	if req.SplitType != "" {
		input.TransformInput.SplitType = aws.String(req.SplitType)
	}
	if req.Accept != "" {
		input.TransformOutput.Accept = aws.String(req.Accept)
	}
	if req.Strategy != "" {
		input.BatchStrategy = aws.String(req.Strategy)
	}
	if req.MaxPayloadMB > 0 {
		input.MaxPayloadInMB = aws.Int64(int64(req.MaxPayloadMB))
	}
	if len(req.Environment) > 0 {
		input.Environment = aws.StringMap(req.Environment)
	}
	if _, err := smc.metadataClient.CreateTransformJobWithContext(ctx, &input); err != nil {
		return transportError("create transform job", err)
	}
	smc.logger.Info("created transform job", zap.String("job", req.Name), zap.String("model", req.ModelName))
	return nil
}

func (smc SMClient) DescribeTransformJob(ctx context.Context, name string) (lib.TransformJobDescription, error) {
	defer timer.Start("sagemaker.DescribeTransformJob").Stop()
	out, err := smc.metadataClient.DescribeTransformJobWithContext(ctx, &sagemaker.DescribeTransformJobInput{
		TransformJobName: aws.String(name),
	})
	if err != nil {
		return lib.TransformJobDescription{}, transportError("describe transform job", err)
	}
	desc := lib.TransformJobDescription{
		Name:          aws.StringValue(out.TransformJobName),
		ModelName:     aws.StringValue(out.ModelName),
		Status:        lib.JobStatus(aws.StringValue(out.TransformJobStatus)),
		FailureReason: aws.StringValue(out.FailureReason),
	}
	if out.TransformOutput != nil {
		desc.OutputPath = aws.StringValue(out.TransformOutput.S3OutputPath)
	}
	return desc, nil
}

func (smc SMClient) WaitForTransformJob(ctx context.Context, name string) (lib.TransformJobDescription, error) {
	defer timer.Start("sagemaker.WaitForTransformJob").Stop()
	waitErr := smc.metadataClient.WaitUntilTransformJobCompletedOrStoppedWithContext(ctx, &sagemaker.DescribeTransformJobInput{
		TransformJobName: aws.String(name),
	})
	desc, err := smc.DescribeTransformJob(ctx, name)
	if err != nil {
		if waitErr != nil {
			return lib.TransformJobDescription{}, transportError("wait for transform job", waitErr)
		}
		return lib.TransformJobDescription{}, err
	}
	if desc.Status == lib.JobFailed {
		return desc, &lib.JobFailedError{Name: name, Status: string(desc.Status), Reason: desc.FailureReason}
	}
	if waitErr != nil {
		return desc, transportError("wait for transform job", waitErr)
	}
	return desc, nil
}
