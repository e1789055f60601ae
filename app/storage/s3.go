package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/FACorreiaa/onelink-market/config"
)

// S3API is the part of the S3 client the blob store needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3BlobStore keeps blobs in a bucket, optionally under a key prefix.
type S3BlobStore struct {
	client S3API
	bucket string
	prefix string
}

var _ BlobStore = (*S3BlobStore)(nil)

// New picks S3 when a bucket is configured and the local directory otherwise.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (BlobStore, error) {
	if cfg.S3.Bucket != "" {
		client, err := NewS3Client(ctx, cfg.S3.Region)
		if err != nil {
			return nil, err
		}
		logger.Info("Using S3 document storage", slog.String("bucket", cfg.S3.Bucket), slog.String("region", cfg.S3.Region))
		return NewS3BlobStore(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	}
	logger.Info("Using local document storage", slog.String("dir", cfg.DocumentsDir))
	return NewLocalBlobStore(cfg.DocumentsDir)
}

func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func NewS3BlobStore(client S3API, bucket, prefix string) *S3BlobStore {
	return &S3BlobStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3BlobStore) objectKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", ErrInvalidKey
		}
	}
	if s.prefix == "" {
		return key, nil
	}
	return path.Join(s.prefix, key), nil
}

// Put never overwrites an existing object. The body is buffered so the
// request can be signed; uploads are already size capped.
func (s *S3BlobStore) Put(ctx context.Context, key string, r io.Reader) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading blob: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return fmt.Errorf("uploading blob: %w", err)
	}
	return nil
}

// Delete succeeds for missing objects, same as S3 itself.
func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	k, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	}); err != nil {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}
