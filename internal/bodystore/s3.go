// ABOUTME: S3-compatible body remover for s3://bucket/key paths
// ABOUTME: Builds the client from the default AWS credential chain

package bodystore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrForeignBucket is returned for s3:// paths outside the configured bucket.
var ErrForeignBucket = errors.New("s3 path outside configured bucket")

// S3Config holds construction parameters for the S3 remover.
type S3Config struct {
	Bucket    string // bodies live here; other buckets are never touched
	Region    string
	Endpoint  string // optional, for MinIO and other S3-compatible servers
	PathStyle bool
}

// deleteObjectAPI is the subset of *s3.Client the remover needs.
type deleteObjectAPI interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 removes objects addressed as s3://bucket/key.
type S3 struct {
	client deleteObjectAPI
	bucket string
}

// NewS3 creates an S3 remover from cfg and the ambient AWS environment.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// Remove deletes the object named by an s3:// path. When a bucket is
// configured, paths naming any other bucket are refused.
// S3 DeleteObject succeeds for missing keys, so no existence check is made.
func (s *S3) Remove(ctx context.Context, path string) error {
	bucket, key, err := parseS3Path(path)
	if err != nil {
		return err
	}
	if s.bucket != "" && bucket != s.bucket {
		return fmt.Errorf("%w: %q is not in %q", ErrForeignBucket, path, s.bucket)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("deleting s3 object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func parseS3Path(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an s3 path", ErrUnsupportedScheme, path)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 path %q: bucket and key required", path)
	}
	return bucket, key, nil
}
