// Package describe reads table column descriptions from local files or S3.
package describe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pvaezi/sql-gpt/pkg/engine"
)

var ErrEmptyReference = errors.New("description reference is required")

// GetObjectAPI is the subset of the S3 client used to fetch descriptions.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ GetObjectAPI = (*s3.Client)(nil)

// Reader returns the description text stored at ref.
type Reader interface {
	Read(ctx context.Context, ref string) (string, error)
}

// Source reads s3://bucket/key references from S3 and everything else from
// the local filesystem.
type Source struct {
	log *slog.Logger

	mu       sync.Mutex
	s3       GetObjectAPI
	newS3    func(ctx context.Context) (GetObjectAPI, error)
	maxBytes int64
}

// New returns a Source. When client is nil an S3 client is built from the
// environment the first time an s3:// reference is read.
func New(log *slog.Logger, client GetObjectAPI) *Source {
	return &Source{
		log:      log,
		s3:       client,
		newS3:    newS3FromEnv,
		maxBytes: 1 << 20,
	}
}

func (s *Source) Read(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrEmptyReference
	}
	if bucket, key, ok := parseS3(ref); ok {
		return s.readS3(ctx, bucket, key)
	}
	f, err := os.Open(ref)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.readAll(f)
}

func (s *Source) readS3(ctx context.Context, bucket, key string) (string, error) {
	client, err := s.s3Client(ctx)
	if err != nil {
		return "", err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	s.log.Debug("describe: fetched object", "bucket", bucket, "key", key)
	return s.readAll(out.Body)
}

func (s *Source) readAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > s.maxBytes {
		return "", fmt.Errorf("description exceeds %d bytes", s.maxBytes)
	}
	return string(b), nil
}

func (s *Source) s3Client(ctx context.Context) (GetObjectAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.s3 != nil {
		return s.s3, nil
	}
	client, err := s.newS3(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	s.s3 = client
	return client, nil
}

// newS3FromEnv honours the same S3_*/AWS_* variables the duckdb engine uses
// so a MinIO endpoint serves both data and descriptions.
func newS3FromEnv(ctx context.Context) (GetObjectAPI, error) {
	s3cfg, err := engine.LoadS3ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s3cfg.Region)}
	if s3cfg.HasStaticCredentials() {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(s3cfg))
		}
		o.UsePathStyle = s3cfg.URLStyle == "path"
	}), nil
}

// endpointURL adds the scheme DuckDB-style host:port endpoints leave out.
func endpointURL(cfg *engine.S3Config) string {
	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.UseSSL {
		return "https://" + cfg.Endpoint
	}
	return "http://" + cfg.Endpoint
}

func parseS3(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
