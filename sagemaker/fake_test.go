package sagemaker

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/aws/aws-sdk-go/service/sagemaker/sagemakeriface"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime/sagemakerruntimeiface"
	"go.uber.org/zap"
)

// fakeSageMaker records inputs of the calls the client makes. Calls not
// overridden here panic through the nil embedded interface.
type fakeSageMaker struct {
	sagemakeriface.SageMakerAPI

	trainingInput  *sagemaker.CreateTrainingJobInput
	trainingJob    *sagemaker.DescribeTrainingJobOutput
	transformInput *sagemaker.CreateTransformJobInput
	transformJob   *sagemaker.DescribeTransformJobOutput
	modelInput     *sagemaker.CreateModelInput
	configInput    *sagemaker.CreateEndpointConfigInput
	endpointInput  *sagemaker.CreateEndpointInput
	endpoints      map[string]*sagemaker.DescribeEndpointOutput
	deleted        []string
	stopped        []string

	createErr error
	waitErr   error
}

func newFakeSageMaker() *fakeSageMaker {
	return &fakeSageMaker{endpoints: map[string]*sagemaker.DescribeEndpointOutput{}}
}

func (f *fakeSageMaker) CreateTrainingJobWithContext(_ aws.Context, in *sagemaker.CreateTrainingJobInput, _ ...request.Option) (*sagemaker.CreateTrainingJobOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.trainingInput = in
	return &sagemaker.CreateTrainingJobOutput{TrainingJobArn: aws.String("arn:" + *in.TrainingJobName)}, nil
}

func (f *fakeSageMaker) DescribeTrainingJobWithContext(_ aws.Context, in *sagemaker.DescribeTrainingJobInput, _ ...request.Option) (*sagemaker.DescribeTrainingJobOutput, error) {
	if f.trainingJob == nil || *f.trainingJob.TrainingJobName != *in.TrainingJobName {
		return nil, awserr.New("ValidationException", "Requested resource not found.", nil)
	}
	return f.trainingJob, nil
}

func (f *fakeSageMaker) WaitUntilTrainingJobCompletedOrStoppedWithContext(aws.Context, *sagemaker.DescribeTrainingJobInput, ...request.WaiterOption) error {
	return f.waitErr
}

func (f *fakeSageMaker) StopTrainingJobWithContext(_ aws.Context, in *sagemaker.StopTrainingJobInput, _ ...request.Option) (*sagemaker.StopTrainingJobOutput, error) {
	f.stopped = append(f.stopped, *in.TrainingJobName)
	return &sagemaker.StopTrainingJobOutput{}, nil
}

func (f *fakeSageMaker) CreateTransformJobWithContext(_ aws.Context, in *sagemaker.CreateTransformJobInput, _ ...request.Option) (*sagemaker.CreateTransformJobOutput, error) {
	f.transformInput = in
	return &sagemaker.CreateTransformJobOutput{}, nil
}

func (f *fakeSageMaker) DescribeTransformJobWithContext(aws.Context, *sagemaker.DescribeTransformJobInput, ...request.Option) (*sagemaker.DescribeTransformJobOutput, error) {
	return f.transformJob, nil
}

func (f *fakeSageMaker) WaitUntilTransformJobCompletedOrStoppedWithContext(aws.Context, *sagemaker.DescribeTransformJobInput, ...request.WaiterOption) error {
	return f.waitErr
}

func (f *fakeSageMaker) CreateModelWithContext(_ aws.Context, in *sagemaker.CreateModelInput, _ ...request.Option) (*sagemaker.CreateModelOutput, error) {
	if f.modelInput != nil && *f.modelInput.ModelName == *in.ModelName {
		return nil, awserr.New("ValidationException", "Cannot create already existing model \""+*in.ModelName+"\".", nil)
	}
	f.modelInput = in
	return &sagemaker.CreateModelOutput{}, nil
}

func (f *fakeSageMaker) DescribeModelWithContext(_ aws.Context, in *sagemaker.DescribeModelInput, _ ...request.Option) (*sagemaker.DescribeModelOutput, error) {
	if f.modelInput == nil || *f.modelInput.ModelName != *in.ModelName {
		return nil, awserr.New("ValidationException", "Could not find model \""+*in.ModelName+"\".", nil)
	}
	return &sagemaker.DescribeModelOutput{ModelName: in.ModelName}, nil
}

func (f *fakeSageMaker) CreateEndpointConfigWithContext(_ aws.Context, in *sagemaker.CreateEndpointConfigInput, _ ...request.Option) (*sagemaker.CreateEndpointConfigOutput, error) {
	f.configInput = in
	return &sagemaker.CreateEndpointConfigOutput{}, nil
}

func (f *fakeSageMaker) DescribeEndpointConfigWithContext(_ aws.Context, in *sagemaker.DescribeEndpointConfigInput, _ ...request.Option) (*sagemaker.DescribeEndpointConfigOutput, error) {
	if f.configInput == nil || *f.configInput.EndpointConfigName != *in.EndpointConfigName {
		return nil, awserr.New("ValidationException", "Could not find endpoint configuration \""+*in.EndpointConfigName+"\".", nil)
	}
	return &sagemaker.DescribeEndpointConfigOutput{EndpointConfigName: in.EndpointConfigName}, nil
}

func (f *fakeSageMaker) CreateEndpointWithContext(_ aws.Context, in *sagemaker.CreateEndpointInput, _ ...request.Option) (*sagemaker.CreateEndpointOutput, error) {
	f.endpointInput = in
	f.endpoints[*in.EndpointName] = &sagemaker.DescribeEndpointOutput{
		EndpointName:       in.EndpointName,
		EndpointConfigName: in.EndpointConfigName,
		EndpointStatus:     aws.String(sagemaker.EndpointStatusInService),
	}
	return &sagemaker.CreateEndpointOutput{}, nil
}

func (f *fakeSageMaker) DescribeEndpointWithContext(_ aws.Context, in *sagemaker.DescribeEndpointInput, _ ...request.Option) (*sagemaker.DescribeEndpointOutput, error) {
	out, ok := f.endpoints[*in.EndpointName]
	if !ok {
		return nil, awserr.New("ValidationException", "Could not find endpoint \""+*in.EndpointName+"\".", nil)
	}
	return out, nil
}

func (f *fakeSageMaker) WaitUntilEndpointInServiceWithContext(aws.Context, *sagemaker.DescribeEndpointInput, ...request.WaiterOption) error {
	return f.waitErr
}

func (f *fakeSageMaker) DeleteEndpointWithContext(_ aws.Context, in *sagemaker.DeleteEndpointInput, _ ...request.Option) (*sagemaker.DeleteEndpointOutput, error) {
	delete(f.endpoints, *in.EndpointName)
	f.deleted = append(f.deleted, "endpoint/"+*in.EndpointName)
	return &sagemaker.DeleteEndpointOutput{}, nil
}

func (f *fakeSageMaker) WaitUntilEndpointDeletedWithContext(aws.Context, *sagemaker.DescribeEndpointInput, ...request.WaiterOption) error {
	return f.waitErr
}

func (f *fakeSageMaker) DeleteEndpointConfigWithContext(_ aws.Context, in *sagemaker.DeleteEndpointConfigInput, _ ...request.Option) (*sagemaker.DeleteEndpointConfigOutput, error) {
	f.deleted = append(f.deleted, "config/"+*in.EndpointConfigName)
	return &sagemaker.DeleteEndpointConfigOutput{}, nil
}

func (f *fakeSageMaker) DeleteModelWithContext(_ aws.Context, in *sagemaker.DeleteModelInput, _ ...request.Option) (*sagemaker.DeleteModelOutput, error) {
	f.deleted = append(f.deleted, "model/"+*in.ModelName)
	return &sagemaker.DeleteModelOutput{}, nil
}

type fakeRuntime struct {
	sagemakerruntimeiface.SageMakerRuntimeAPI

	input *sagemakerruntime.InvokeEndpointInput
	body  []byte
	err   error
}

func (f *fakeRuntime) InvokeEndpointWithContext(_ aws.Context, in *sagemakerruntime.InvokeEndpointInput, _ ...request.Option) (*sagemakerruntime.InvokeEndpointOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sagemakerruntime.InvokeEndpointOutput{
		Body:        f.body,
		ContentType: aws.String("application/json"),
	}, nil
}

func newTestClient(args SagemakerArgs) (SMClient, *fakeSageMaker, *fakeRuntime) {
	sm := newFakeSageMaker()
	rt := &fakeRuntime{}
	return NewClientWithAPI(args, zap.NewNop(), sm, rt), sm, rt
}
