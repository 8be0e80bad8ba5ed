package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	lib "sagekit/lib/sagemaker"
	"sagekit/lib/timer"
)

type S3Args struct {
	S3Region string `arg:"--s3-region,env:S3_REGION,help:AWS region of the default bucket, defaults to the session region"`
}

type batchDeleter interface {
	Delete(ctx aws.Context, iter s3manager.BatchDeleteIterator) error
}

type Client struct {
	args       S3Args
	api        s3iface.S3API
	uploader   s3manageriface.UploaderAPI
	downloader s3manageriface.DownloaderAPI
	deleter    batchDeleter
}

var _ lib.ObjectStore = Client{}

func NewClient(args S3Args) Client {
	sess := session.Must(session.NewSession(
		&aws.Config{
			Region:                        aws.String(args.S3Region),
			CredentialsChainVerboseErrors: aws.Bool(true),
		},
	))
	return Client{
		args:       args,
		api:        s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		downloader: s3manager.NewDownloader(sess),
		deleter:    s3manager.NewBatchDelete(sess),
	}
}

func (c Client) Upload(ctx context.Context, body io.Reader, bucket, key string) error {
	defer timer.Start("s3.Upload").Stop()
	input := s3manager.UploadInput{
		Body:   body,
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if _, err := c.uploader.UploadWithContext(ctx, &input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", URI(bucket, key), err)
	}
	return nil
}

func (c Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	defer timer.Start("s3.Download").Stop()
	input := s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	buf := aws.WriteAtBuffer{}
	if _, err := c.downloader.DownloadWithContext(ctx, &buf, &input); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", URI(bucket, key), err)
	}
	return buf.Bytes(), nil
}

func (c Client) Delete(ctx context.Context, bucket, key string) error {
	input := s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	objects := []s3manager.BatchDeleteObject{{Object: &input}}
	iterator := s3manager.DeleteObjectsIterator{Objects: objects}
	if err := c.deleter.Delete(ctx, &iterator); err != nil {
		return fmt.Errorf("failed to delete %s: %w", URI(bucket, key), err)
	}
	return nil
}

// EnsureBucket creates bucket in region unless it already exists.
func (c Client) EnsureBucket(ctx context.Context, bucket, region string) error {
	_, err := c.api.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != "NotFound" {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	input := s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 is the default location and must not be named explicitly
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(region),
		}
	}
	_, err = c.api.CreateBucketWithContext(ctx, &input)
	if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

func URI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// ParseURI splits s3://bucket/key into its bucket and key. The key may be
// empty.
func ParseURI(uri string) (string, string, error) {
	rest := strings.TrimPrefix(uri, "s3://")
	if rest == uri {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 uri has no bucket: %q", uri)
	}
	return bucket, key, nil
}
