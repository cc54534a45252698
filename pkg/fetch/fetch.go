// Package fetch resolves logfile locations to local paths. Local paths
// pass through (optionally joined onto a base directory); s3:// URIs
// are downloaded to a temporary file before scanning.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds S3 client configuration for remote logfiles.
type S3Config struct {
	// Region is the AWS region (e.g., "us-east-1").
	Region string

	// Endpoint overrides the default S3 endpoint (for S3-compatible
	// services like MinIO).
	Endpoint string

	// UsePathStyle forces path-style addressing (MinIO, LocalStack).
	UsePathStyle bool

	// Credentials (optional; default chain is used if empty).
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// DownloadTimeout bounds a single object download.
	DownloadTimeout time.Duration
}

// DefaultS3Config returns sensible defaults.
func DefaultS3Config(region string) S3Config {
	return S3Config{
		Region:          region,
		DownloadTimeout: 5 * time.Minute,
	}
}

// Resolver maps suite logfile locations to readable local paths.
type Resolver struct {
	// BaseDir is joined onto relative local paths.
	BaseDir string

	// S3 configures downloads for s3:// locations.
	S3 S3Config

	mu     sync.Mutex
	client *s3.Client
}

// Resolve returns a local path for the given location and a cleanup
// function that removes any temporary download. The cleanup function
// is never nil.
func (r *Resolver) Resolve(ctx context.Context, location string) (string, func(), error) {
	if bucket, key, ok := SplitS3URI(location); ok {
		return r.download(ctx, bucket, key)
	}
	path := location
	if r.BaseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(r.BaseDir, path)
	}
	return path, func() {}, nil
}

// SplitS3URI splits "s3://bucket/key" into its parts.
func SplitS3URI(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

func (r *Resolver) download(ctx context.Context, bucket, key string) (string, func(), error) {
	client, err := r.s3Client(ctx)
	if err != nil {
		return "", func() {}, err
	}

	timeout := r.S3.DownloadTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to get object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	// Preserve the extension so gzip detection still works downstream.
	tmp, err := os.CreateTemp("", "logvet-*"+filepath.Ext(key))
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", func() {}, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", func() {}, fmt.Errorf("failed to close temp file: %w", err)
	}
	path := tmp.Name()
	return path, func() { os.Remove(path) }, nil
}

// s3Client lazily builds the shared S3 client.
func (r *Resolver) s3Client(ctx context.Context) (*s3.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if r.S3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(r.S3.Region))
	}
	if r.S3.AccessKeyID != "" && r.S3.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				r.S3.AccessKeyID,
				r.S3.SecretAccessKey,
				r.S3.SessionToken,
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if r.S3.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(r.S3.Endpoint)
		})
	}
	if r.S3.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	r.client = s3.NewFromConfig(awsCfg, s3Opts...)
	return r.client, nil
}
