package sagemaker

import (
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/aws/aws-sdk-go/service/sagemaker/sagemakeriface"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime/sagemakerruntimeiface"
	"go.uber.org/zap"

	lib "sagekit/lib/sagemaker"
)

type SagemakerArgs struct {
	Region                 string   `arg:"--region,env:AWS_REGION,help:AWS region"`
	SagemakerExecutionRole string   `arg:"--sagemaker-execution-role,env:SAGEMAKER_EXECUTION_ROLE,help:SageMaker execution role"`
	PrivateSubnets         []string `arg:"--private-subnets,env:PRIVATE_SUBNETS,help:Private subnets for training and hosting containers"`
	SagemakerSecurityGroup string   `arg:"--sagemaker-security-group,env:SAGEMAKER_SECURITY_GROUP,help:SageMaker security group"`
}

func NewClient(args SagemakerArgs, logger *zap.Logger) SMClient {
	sess := session.Must(session.NewSession(
		&aws.Config{
			Region:                        aws.String(args.Region),
			CredentialsChainVerboseErrors: aws.Bool(true),
		},
	))
	return NewClientWithAPI(args, logger, sagemaker.New(sess), sagemakerruntime.New(sess))
}

// NewClientWithAPI builds a client over already constructed service clients.
func NewClientWithAPI(args SagemakerArgs, logger *zap.Logger, metadata sagemakeriface.SageMakerAPI, runtime sagemakerruntimeiface.SageMakerRuntimeAPI) SMClient {
	return SMClient{
		args:           args,
		logger:         logger,
		metadataClient: metadata,
		runtimeClient:  runtime,
	}
}

type SMClient struct {
	args           SagemakerArgs
	logger         *zap.Logger
	metadataClient sagemakeriface.SageMakerAPI
	runtimeClient  sagemakerruntimeiface.SageMakerRuntimeAPI
}

var _ lib.Platform = SMClient{}

func (smc SMClient) vpcConfig() *sagemaker.VpcConfig {
	if len(smc.args.PrivateSubnets) == 0 || smc.args.SagemakerSecurityGroup == "" {
		return nil
	}
	return &sagemaker.VpcConfig{
		Subnets:          aws.StringSlice(smc.args.PrivateSubnets),
		SecurityGroupIds: aws.StringSlice([]string{smc.args.SagemakerSecurityGroup}),
	}
}

func transportError(op string, err error) error {
	return &lib.TransportError{Op: op, Err: err}
}

// isNotFound reports whether err is the validation error the control plane
// returns for a missing resource, e.g. "Could not find endpoint".
func isNotFound(err error, resource string) bool {
	var e awserr.Error
	if errors.As(err, &e) {
		return e.Code() == "ValidationException" && strings.HasPrefix(e.Message(), "Could not find "+resource)
	}
	return false
}

// isAlreadyExists reports whether err is the validation error the control
// plane returns when a resource name is taken, e.g. "Cannot create already
// existing model".
func isAlreadyExists(err error, resource string) bool {
	var e awserr.Error
	if errors.As(err, &e) {
		return e.Code() == "ValidationException" && strings.HasPrefix(e.Message(), "Cannot create already existing "+resource)
	}
	return false
}
