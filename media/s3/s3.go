// Package s3 stores job media in an S3 or S3-compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/media"
)

var _ media.Storage = (*Storage)(nil)

// Config selects the bucket and credentials.
type Config struct {
	Bucket string
	Region string
	// Endpoint is set for S3-compatible services; it enables path-style
	// addressing.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// URLExpiry is the lifetime of presigned URLs. Defaults to one hour.
	URLExpiry time.Duration
}

// Storage is a media.Storage backed by S3.
type Storage struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
	expiry  time.Duration
}

// New loads AWS configuration and creates a Storage. Static credentials
// are used when AccessKeyID is set, otherwise the default chain.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("media/s3: load config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Storage{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expiry:  expiry,
	}, nil
}

// Upload puts r at key p.
func (s *Storage) Upload(ctx context.Context, p, contentType string, r io.Reader) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(p),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("media/s3: put %s: %w", p, err)
	}
	return nil
}

// URL returns a presigned GET URL for p.
func (s *Storage) URL(ctx context.Context, p string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(p),
	}, awss3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("media/s3: presign %s: %w", p, err)
	}
	return req.URL, nil
}

// Exists reports whether an object is stored at p.
func (s *Storage) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(p),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	return false, fmt.Errorf("media/s3: head %s: %w", p, err)
}

// Require returns ErrMediaNotFound unless p exists.
func (s *Storage) Require(ctx context.Context, p string) error {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", p, fieldwork.ErrMediaNotFound)
	}
	return nil
}
