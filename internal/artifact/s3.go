package artifact

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures the MinIO/S3 artifact store.
type S3Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	TTL             time.Duration
}

// S3Store publishes artifacts to MinIO/S3 and returns presigned GET URLs that
// expire with the artifact.
type S3Store struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewS3Store creates an artifact store backed by the minio-go SDK.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("artifact endpoint is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("artifact credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("artifact bucket is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact endpoint: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: u.Scheme != "http",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact client: %w", err)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

// Publish uploads the file and presigns a download URL valid for the TTL.
func (s *S3Store) Publish(ctx context.Context, key, path, contentType string) (Handle, error) {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return Handle{}, fmt.Errorf("check artifact bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return Handle{}, fmt.Errorf("create artifact bucket: %w", err)
		}
	}

	key = strings.TrimPrefix(key, "/")
	if _, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return Handle{}, fmt.Errorf("upload artifact: %w", err)
	}

	expiry := time.Now().Add(s.ttl)
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return Handle{}, fmt.Errorf("presign artifact: %w", err)
	}
	return Handle{
		Key:            key,
		DownloadURL:    signed.String(),
		AvailableUntil: expiry,
	}, nil
}
