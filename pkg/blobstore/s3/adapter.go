package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yipson/mental-health-assistant/pkg/blobstore"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// Adapter implements blobstore.Store against a real S3-compatible backend.
type Adapter struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

type Config struct {
	Endpoint        string // non-empty for MinIO or other custom endpoints
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

func NewAdapter(ctx context.Context, cfg Config, log zerolog.Logger) (*Adapter, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO only speaks path-style addressing.
			o.UsePathStyle = true
		}
	})

	// Ensure the bucket exists up front so the first upload doesn't fail.
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &cfg.Bucket}); err != nil {
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &cfg.Bucket}); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.Bucket).Msg("could not ensure bucket exists")
		}
	}

	return &Adapter{
		client: client,
		bucket: cfg.Bucket,
		log:    log.With().Str("component", "s3store").Logger(),
	}, nil
}

func (a *Adapter) Bucket() string { return a.bucket }

func (a *Adapter) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}

	a.log.Debug().Str("key", key).Int("size", len(data)).Msg("object uploaded")
	return blobstore.Locator(a.bucket, key), nil
}

func (a *Adapter) Download(ctx context.Context, locator, dest string) error {
	key := blobstore.ExtractKey(locator, a.bucket)

	resp, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return blobstore.ErrNotFound
		}
		return fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return false, nil
	}
	// Some S3 implementations surface Head misses as a bare 404.
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}
	return false, err
}
