package objstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the bucket connection settings.
type S3Config struct {
	Endpoint  string // empty for AWS proper
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PresignTTL bounds how long returned URLs stay valid.
	PresignTTL time.Duration
}

// S3 uploads artifacts to an S3-compatible bucket and returns presigned
// download URLs.
type S3 struct {
	bucket   string
	uploader *manager.Uploader
	presign  *awss3.PresignClient
	ttl      time.Duration
}

// Compile-time interface implementation check.
var _ Store = (*S3)(nil)

// NewS3 connects to the configured bucket. Non-AWS endpoints (MinIO and
// friends) use path-style addressing.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 24 * time.Hour
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = !strings.Contains(cfg.Endpoint, "amazonaws.com")
		}
	})

	return &S3{
		bucket:   cfg.Bucket,
		uploader: manager.NewUploader(client),
		presign:  awss3.NewPresignClient(client),
		ttl:      cfg.PresignTTL,
	}, nil
}

func (s *S3) Upload(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath) // #nosec G304 -- pipeline-produced path
	if err != nil {
		return "", fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, awss3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", key, err)
	}
	return req.URL, nil
}
