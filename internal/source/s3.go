package source

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures the S3 client. Empty fields fall back to the AWS
// default chain (environment, shared config, instance role).
type S3Options struct {
	Region          string
	Endpoint        string // S3-compatible endpoint; selects path-style addressing
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store reads archives from S3 with the SDK's concurrent range downloader.
type S3Store struct {
	client     *s3.Client
	downloader *manager.Downloader
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store loads AWS configuration and creates an S3Store.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, downloader: manager.NewDownloader(client)}, nil
}

// Size returns the object's content length.
func (s *S3Store) Size(ctx context.Context, bucket, key string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Fetch downloads the whole object into memory.
func (s *S3Store) Fetch(ctx context.Context, bucket, key string, size int64) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes()[:n], nil
}
