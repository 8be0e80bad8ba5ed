package sagemaker

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sagemakerruntime"

	lib "sagekit/lib/sagemaker"
	"sagekit/lib/timer"
)

func (smc SMClient) Invoke(ctx context.Context, req lib.InvokeRequest) (lib.InvokeResponse, error) {
	defer timer.Start("sagemaker.Invoke").Stop()
	input := sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(req.EndpointName),
		Body:         req.Body,
		ContentType:  aws.String(req.ContentType),
	}
	if req.Accept != "" {
		input.Accept = aws.String(req.Accept)
	}
	out, err := smc.runtimeClient.InvokeEndpointWithContext(ctx, &input)
	if err != nil {
		return lib.InvokeResponse{}, transportError("invoke endpoint", err)
	}
	return lib.InvokeResponse{
		ContentType: aws.StringValue(out.ContentType),
		Body:        out.Body,
	}, nil
}
