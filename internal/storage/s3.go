// Package storage reads CSV imports from S3 and archives their summaries
// next to them.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// ErrBucketRequired is returned when neither the call nor the store names a
// bucket.
var ErrBucketRequired = errors.New("s3 bucket is required")

// S3API is the subset of the S3 client used here.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Importer is the CSV engine fed from S3. *list.Service satisfies it.
type Importer interface {
	ImportCSVWithID(ctx context.Context, importID, listID string, src io.Reader) (*domain.ImportSummary, error)
}

// S3Source streams objects into the CSV importer.
type S3Source struct {
	client        S3API
	defaultBucket string
	importer      Importer
}

// NewS3Source loads the default AWS credential chain for region.
func NewS3Source(ctx context.Context, region, defaultBucket string, importer Importer) (*S3Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3SourceWithClient(s3.NewFromConfig(cfg), defaultBucket, importer), nil
}

// NewS3SourceWithClient wires an existing client.
func NewS3SourceWithClient(client S3API, defaultBucket string, importer Importer) *S3Source {
	return &S3Source{client: client, defaultBucket: defaultBucket, importer: importer}
}

func (s *S3Source) bucket(b string) (string, error) {
	if b != "" {
		return b, nil
	}
	if s.defaultBucket == "" {
		return "", ErrBucketRequired
	}
	return s.defaultBucket, nil
}

// Import streams bucket/key into listID. An empty bucket uses the default.
// The summary is archived to <key>.summary.json; archive failures are only
// logged.
func (s *S3Source) Import(ctx context.Context, listID, bucket, key string) (*domain.ImportSummary, error) {
	bucket, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("getting s3://%s/%s: %w", bucket, key, err)
	}
	defer obj.Body.Close()

	importID := uuid.New().String()
	logger.Info("importing csv from s3", "import_id", importID, "list_id", listID, "bucket", bucket, "key", key)
	sum, err := s.importer.ImportCSVWithID(ctx, importID, listID, obj.Body)
	if err != nil {
		return nil, err
	}
	if err := s.archive(ctx, bucket, summaryKey(key), sum); err != nil {
		logger.Warn("import summary not archived", "import_id", importID, "error", err)
	}
	return sum, nil
}

func summaryKey(key string) string {
	return strings.TrimSuffix(key, path.Ext(key)) + ".summary.json"
}

func (s *S3Source) archive(ctx context.Context, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
