// Package publish mirrors the serve tree to S3-compatible object storage,
// so the artifacts can be consumed from a bucket as well as local disk.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Perth-Artifactory/tidyproxy/internal/config"
	"github.com/Perth-Artifactory/tidyproxy/internal/logging"
)

// ObjectPutter is the slice of the S3 API the publisher needs; tests
// substitute a fake.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads files to one bucket under an optional key prefix.
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	log    logging.Logger
}

// New builds a Publisher from the s3 config section. A custom Endpoint
// switches the client to path-style addressing for MinIO-compatible
// servers.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Publisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("publish: aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(client, cfg.S3.Bucket, cfg.S3.Prefix, log), nil
}

// NewWithClient wires an explicit client; used by New and by tests.
func NewWithClient(client ObjectPutter, bucket, prefix string, log logging.Logger) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: prefix, log: log}
}

// Mirror walks dir and uploads every regular file, keyed by its
// slash-separated path relative to dir. Uploads are sequential; the first
// failure aborts the mirror.
func (p *Publisher) Mirror(ctx context.Context, dir string) error {
	uploaded := 0

	err := filepath.WalkDir(dir, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("publish: read %s: %w", file, err)
		}

		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return err
		}
		key := path.Join(p.prefix, filepath.ToSlash(rel))

		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("publish: put %s: %w", key, err)
		}

		p.log.Debug(ctx, "uploaded", "key", key, "bytes", len(data))
		uploaded++
		return nil
	})
	if err != nil {
		return err
	}

	p.log.Info(ctx, "mirrored serve tree", "bucket", p.bucket, "files", uploaded)
	return nil
}
