package sagemaker

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
	"sagekit/lib/timer"
)

func (smc SMClient) CreateTrainingJob(ctx context.Context, req lib.TrainingJobRequest) error {
	defer timer.Start("sagemaker.CreateTrainingJob").Stop()
	input := sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(req.Name),
		AlgorithmSpecification: &sagemaker.AlgorithmSpecification{
			TrainingImage:     aws.String(req.Image),
			TrainingInputMode: aws.String(sagemaker.TrainingInputModeFile),
		},
		RoleArn:         aws.String(req.Role),
		HyperParameters: aws.StringMap(req.HyperParameters),
		InputDataConfig: toChannels(req.Inputs),
		OutputDataConfig: &sagemaker.OutputDataConfig{
			S3OutputPath: aws.String(req.OutputPath),
		},
		ResourceConfig: &sagemaker.ResourceConfig{
			InstanceCount:  aws.Int64(int64(req.Resources.InstanceCount)),
			InstanceType:   aws.String(req.Resources.InstanceType),
			VolumeSizeInGB: aws.Int64(int64(req.Resources.VolumeSizeGB)),
		},
		StoppingCondition: &sagemaker.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int64(int64(req.MaxRuntime / time.Second)),
		},
		VpcConfig: smc.vpcConfig(),
	}
	if len(input.HyperParameters) == 0 {
		input.HyperParameters = nil
	}
	if _, err := smc.metadataClient.CreateTrainingJobWithContext(ctx, &input); err != nil {
		return transportError("create training job", err)
	}
	smc.logger.Info("created training job", zap.String("job", req.Name), zap.String("image", req.Image))
	return nil
}

func (smc SMClient) DescribeTrainingJob(ctx context.Context, name string) (lib.TrainingJobDescription, error) {
	defer timer.Start("sagemaker.DescribeTrainingJob").Stop()
	out, err := smc.metadataClient.DescribeTrainingJobWithContext(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(name),
	})
	if err != nil {
		return lib.TrainingJobDescription{}, transportError("describe training job", err)
	}
	return fromTrainingJob(out), nil
}

// WaitForTrainingJob polls until the job is completed, stopped or failed. A
// failed job is reported as a *lib.JobFailedError along with its description.
func (smc SMClient) WaitForTrainingJob(ctx context.Context, name string) (lib.TrainingJobDescription, error) {
	defer timer.Start("sagemaker.WaitForTrainingJob").Stop()
	waitErr := smc.metadataClient.WaitUntilTrainingJobCompletedOrStoppedWithContext(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(name),
	})
	desc, err := smc.DescribeTrainingJob(ctx, name)
	if err != nil {
		if waitErr != nil {
			return lib.TrainingJobDescription{}, transportError("wait for training job", waitErr)
		}
		return lib.TrainingJobDescription{}, err
	}
	if desc.Status == lib.JobFailed {
		return desc, &lib.JobFailedError{Name: name, Status: string(desc.Status), Reason: desc.FailureReason}
	}
	if waitErr != nil {
		return desc, transportError("wait for training job", waitErr)
	}
	return desc, nil
}

func (smc SMClient) StopTrainingJob(ctx context.Context, name string) error {
	defer timer.Start("sagemaker.StopTrainingJob").Stop()
	_, err := smc.metadataClient.StopTrainingJobWithContext(ctx, &sagemaker.StopTrainingJobInput{
		TrainingJobName: aws.String(name),
	})
	if err != nil {
		return transportError("stop training job", err)
	}
	smc.logger.Info("stopped training job", zap.String("job", name))
	return nil
}

func toChannels(channels []lib.Channel) []*sagemaker.Channel {
	ret := make([]*sagemaker.Channel, 0, len(channels))
	for _, c := range channels {
		channel := &sagemaker.Channel{
			ChannelName: aws.String(c.Name),
			DataSource: &sagemaker.DataSource{
				S3DataSource: &sagemaker.S3DataSource{
					S3DataType:             aws.String(c.S3DataType),
					S3Uri:                  aws.String(c.S3URI),
					S3DataDistributionType: aws.String(c.Distribution),
				},
			},
		}
		if c.ContentType != "" {
			channel.ContentType = aws.String(c.ContentType)
		}
		ret = append(ret, channel)
	}
	return ret
}

func fromChannels(channels []*sagemaker.Channel) []lib.Channel {
	ret := make([]lib.Channel, 0, len(channels))
	for _, c := range channels {
		channel := lib.Channel{
			Name:        aws.StringValue(c.ChannelName),
			ContentType: aws.StringValue(c.ContentType),
		}
		if c.DataSource != nil && c.DataSource.S3DataSource != nil {
			src := c.DataSource.S3DataSource
			channel.S3URI = aws.StringValue(src.S3Uri)
			channel.S3DataType = aws.StringValue(src.S3DataType)
			channel.Distribution = aws.StringValue(src.S3DataDistributionType)
		}
		ret = append(ret, channel)
	}
	return ret
}

func fromTrainingJob(out *sagemaker.DescribeTrainingJobOutput) lib.TrainingJobDescription {
	desc := lib.TrainingJobDescription{
		Name:            aws.StringValue(out.TrainingJobName),
		Role:            aws.StringValue(out.RoleArn),
		Status:          lib.JobStatus(aws.StringValue(out.TrainingJobStatus)),
		FailureReason:   aws.StringValue(out.FailureReason),
		HyperParameters: aws.StringValueMap(out.HyperParameters),
		Inputs:          fromChannels(out.InputDataConfig),
	}
	if out.AlgorithmSpecification != nil {
		desc.Image = aws.StringValue(out.AlgorithmSpecification.TrainingImage)
	}
	if out.ModelArtifacts != nil {
		desc.ArtifactURI = aws.StringValue(out.ModelArtifacts.S3ModelArtifacts)
	}
	if out.OutputDataConfig != nil {
		desc.OutputPath = aws.StringValue(out.OutputDataConfig.S3OutputPath)
	}
	if rc := out.ResourceConfig; rc != nil {
		desc.Resources = lib.ResourceConfig{
			InstanceCount: uint(aws.Int64Value(rc.InstanceCount)),
			InstanceType:  aws.StringValue(rc.InstanceType),
			VolumeSizeGB:  uint(aws.Int64Value(rc.VolumeSizeInGB)),
		}
	}
	if out.StoppingCondition != nil {
		desc.MaxRuntime = time.Duration(aws.Int64Value(out.StoppingCondition.MaxRuntimeInSeconds)) * time.Second
	}
	return desc
}
