package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"sixmarket/internal/pkg/logx"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	errPresignUpload   = errors.New("failed to generate presigned upload URL")
	errPresignDownload = errors.New("failed to generate presigned download URL")
)

// s3Client implements StorageService against AWS S3 or an S3-compatible endpoint.
type s3Client struct {
	bucket   string
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
}

// newS3Client loads the SDK configuration. Static credentials are used when configured,
// otherwise the default AWS credential chain applies.
func newS3Client(ctx context.Context, cfg ServiceConfig) (*s3Client, error) {
	if cfg.S3BucketName == "" {
		return nil, errors.New("S3 bucket name is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			cfg.S3SessionToken,
		)))
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logx.Error(err, "Failed to load AWS SDK config")
		return nil, fmt.Errorf("failed to initialize S3 client configuration: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return &s3Client{
		bucket:   cfg.S3BucketName,
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
	}, nil
}

// PresignUpload signs a PutObject request. The content type is part of the signature,
// so the PUT must send the same Content-Type header.
func (c *s3Client) PresignUpload(ctx context.Context, key string, mimeType string, duration time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
	}

	resp, err := c.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(duration))
	if err != nil {
		logx.Error(err, "Failed to generate presigned upload URL", "key", key)
		return "", fmt.Errorf("%w: %w", errPresignUpload, err)
	}

	return resp.URL, nil
}

// PresignDownload signs a GetObject request for key.
func (c *s3Client) PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}

	resp, err := c.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(duration))
	if err != nil {
		logx.Error(err, "Failed to generate presigned download URL", "key", key)
		return "", fmt.Errorf("%w: %w", errPresignDownload, err)
	}

	return resp.URL, nil
}

// Upload streams body to key with the multipart upload manager.
func (c *s3Client) Upload(ctx context.Context, key string, contentType string, body io.Reader) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        body,
	})
	if err != nil {
		logx.Error(err, "S3 upload failed", "key", key)
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return nil
}
