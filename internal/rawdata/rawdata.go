// Package rawdata opens the raw input files (trade CSVs, reference tables, FAO and
// IDS extracts) from a local directory or an S3 bucket.
package rawdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"tradeimpact/internal/config"
)

var ErrNotExist = errors.New("rawdata: file does not exist")

type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Describe(name string) string
}

func New(ctx context.Context, cfg config.Config) (Opener, error) {
	switch cfg.Raw.Source {
	case config.RawSourceS3:
		return NewS3(ctx, cfg.Raw.S3)
	case config.RawSourceFile, "":
		return Dir(cfg.Paths.Raw), nil
	default:
		return nil, fmt.Errorf("rawdata: unknown source %q", cfg.Raw.Source)
	}
}

// Dir opens files relative to a local directory.
type Dir string

func (d Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	_ = ctx
	file, err := os.Open(filepath.Join(string(d), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, d.Describe(name))
		}
		return nil, err
	}
	return file, nil
}

func (d Dir) Describe(name string) string {
	return filepath.Join(string(d), name)
}

type getObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 opens objects under a bucket prefix.
type S3 struct {
	client getObjectAPI
	bucket string
	prefix string
}

func NewS3(ctx context.Context, cfg config.S3) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3WithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3WithClient(client getObjectAPI, bucket, prefix string) *S3 {
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("rawdata: get %s: %w", s.Describe(name), err)
	}
	return result.Body, nil
}

func (s *S3) Describe(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

func (s *S3) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
