package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Signer mints presigned PUT URLs against an S3 bucket. Objects are
// uploaded public-read so the resize pipeline and the asset URLs can serve
// them without further signing.
type S3Signer struct {
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

// NewS3Signer builds a signer from the ambient AWS credential chain.
func NewS3Signer(ctx context.Context, bucket, region string, expiry time.Duration) (*S3Signer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Signer{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		expiry:    expiry,
	}, nil
}

// Mint returns a presigned single-use PUT URL for the given key.
func (s *S3Signer) Mint(ctx context.Context, key string) (string, error) {
	out, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign put for %s: %w", key, err)
	}
	return out.URL, nil
}
