package collaborators

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3BlobFetcher implements BlobFetcher against an S3-compatible bucket
// for uploaded scan targets.
type S3BlobFetcher struct {
	client *s3.Client
	bucket string
}

// NewS3BlobFetcher builds a client for the given region/bucket. An empty
// endpoint uses AWS's default resolver; a non-empty one (MinIO or another
// S3-compatible store) forces path-style addressing.
func NewS3BlobFetcher(ctx context.Context, region, bucket, endpoint string) (*S3BlobFetcher, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("collaborators: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3BlobFetcher{client: client, bucket: bucket}, nil
}

// Fetch resolves blobHandle to an object key within the configured bucket
// and returns its byte stream. The handle is treated as opaque by every
// caller above this adapter — the core never parses or logs it.
func (f *S3BlobFetcher) Fetch(ctx context.Context, blobHandle string) (io.ReadCloser, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(blobHandle),
	})
	if err != nil {
		return nil, fmt.Errorf("collaborators: fetch blob: %w", err)
	}
	return out.Body, nil
}

var _ BlobFetcher = (*S3BlobFetcher)(nil)
