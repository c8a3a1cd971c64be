// Package backup uploads gzipped journal exports to S3 compatible storage
// and rotates old copies.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"substance-journal/internal/config"
	"substance-journal/internal/transfer"
)

const keyPrefix = "journal-"

// ObjectStore is the subset of the S3 API used for backups.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Exporter writes the journal document.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) (transfer.Summary, error)
}

// NewS3Client builds a client for the configured endpoint with static credentials.
// An empty endpoint talks to AWS itself.
func NewS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Object is one stored backup.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type Service struct {
	client   ObjectStore
	bucket   string
	keep     int
	exporter Exporter
	log      *zap.Logger
	now      func() time.Time
}

// New keeps the newest keep backups in bucket.
func New(client ObjectStore, bucket string, keep int, exporter Exporter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if keep < 1 {
		keep = 1
	}
	return &Service{client: client, bucket: bucket, keep: keep, exporter: exporter, log: log.Named("backup"), now: time.Now}
}

// Key names the backup taken at t.
func Key(t time.Time) string {
	return keyPrefix + t.UTC().Format("2006-01-02T15-04-05Z") + ".json.gz"
}

// Run exports the journal, uploads it and rotates old backups. It returns
// the key of the new backup.
func (s *Service) Run(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	sum, err := s.exporter.Export(ctx, zw)
	if err != nil {
		return "", fmt.Errorf("export journal: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress export: %w", err)
	}

	key := Key(s.now())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.log.Info("backup uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", buf.Len()),
		zap.Int("experiences", sum.Experiences))

	if _, err := s.Rotate(ctx); err != nil {
		return key, err
	}
	return key, nil
}

// List returns the stored backups, newest first.
func (s *Service) List(ctx context.Context) ([]Object, error) {
	var out []Object
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, obj := range page.Contents {
			out = append(out, toObject(obj))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Rotate deletes all but the newest backups and returns the deleted keys.
// Failed deletions are logged and skipped.
func (s *Service) Rotate(ctx context.Context) ([]string, error) {
	objects, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var deleted []string
	for _, obj := range expired(objects, s.keep) {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(obj.Key),
		})
		if err != nil {
			s.log.Warn("delete old backup", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		s.log.Info("old backup deleted", zap.String("key", obj.Key))
		deleted = append(deleted, obj.Key)
	}
	return deleted, nil
}

// Open returns the decompressed document stored under key.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !strings.HasPrefix(key, keyPrefix) {
		return nil, fmt.Errorf("%q is not a journal backup", key)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	zr, err := gzip.NewReader(out.Body)
	if err != nil {
		out.Body.Close()
		return nil, fmt.Errorf("decompress %s: %w", key, err)
	}
	return &gzipBody{Reader: zr, body: out.Body}, nil
}

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (g *gzipBody) Close() error {
	err := g.Reader.Close()
	if bodyErr := g.body.Close(); err == nil {
		err = bodyErr
	}
	return err
}

func toObject(obj types.Object) Object {
	return Object{
		Key:          aws.ToString(obj.Key),
		Size:         aws.ToInt64(obj.Size),
		LastModified: aws.ToTime(obj.LastModified),
	}
}

// sortNewestFirst orders by modification time; keys embed the timestamp and
// break ties.
func sortNewestFirst(objects []Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		a, b := objects[i], objects[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.Key > b.Key
	})
}

// expired returns the objects past the newest keep, given a newest first list.
func expired(objects []Object, keep int) []Object {
	if len(objects) <= keep {
		return nil
	}
	return objects[keep:]
}
