package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cuongbtq/coursehub/internal/domain"
)

const s3Scheme = "s3://"

// S3API is the part of *s3.Client the store uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3 store settings
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint points the client at an S3 compatible service such as MinIO
	Endpoint string
}

// S3Store keeps files in an S3 bucket. Paths have the form s3://bucket/key.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Client builds an S3 client from the default AWS credential chain
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Store creates an S3 backed store
func NewS3Store(client S3API, cfg S3Config, logger *slog.Logger) *S3Store {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Save implements Store
func (s *S3Store) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	// PutObject needs a seekable body to sign the payload
	data, err := io.ReadAll(content)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}

	key := s.prefix + objectName(filename)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	s.logger.Debug("Stored upload in S3",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)

	return s3Scheme + s.bucket + "/" + key, nil
}

// Open implements Store
func (s *S3Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	key, ok := s.keyOf(path)
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "file not found", nil)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.NewError(domain.ErrNotFound, "file not found", nil)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	return out.Body, nil
}

func (s *S3Store) keyOf(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, s3Scheme+s.bucket+"/")
	if !ok || rest == "" || !strings.HasPrefix(rest, s.prefix) {
		return "", false
	}
	return rest, true
}
