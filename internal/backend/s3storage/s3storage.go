// Package s3storage implements backend.Storage on Amazon S3. Logical
// buckets become key prefixes inside one S3 bucket.
package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dalemusser/freshershub/internal/backend"
)

// API is the subset of the S3 client used here.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Config describes the target bucket.
type Config struct {
	Region string
	Bucket string
	Prefix string
	// PublicURL is the base URL objects are served from (bucket website or
	// CDN). Empty means https://<bucket>.s3.<region>.amazonaws.com.
	PublicURL string
}

// Storage stores objects under Prefix + bucket + "/" + path.
type Storage struct {
	api       API
	bucket    string
	prefix    string
	publicURL string
}

// New loads the default AWS credential chain and returns a Storage.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3storage: bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("s3storage: load aws config: %w", err)
	}
	return NewWithAPI(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewWithAPI builds a Storage around an existing client.
func NewWithAPI(api API, cfg Config) *Storage {
	pub := strings.TrimRight(cfg.PublicURL, "/")
	if pub == "" {
		pub = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &Storage{api: api, bucket: cfg.Bucket, prefix: cfg.Prefix, publicURL: pub}
}

func (s *Storage) key(bucket, path string) string {
	return s.prefix + bucket + "/" + strings.TrimLeft(path, "/")
}

func (s *Storage) Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) (string, error) {
	// PutObject needs a seekable body to compute the payload hash.
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		body = bytes.NewReader(data)
	}
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(bucket, path)),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s/%s: %w", bucket, path, err)
	}
	return path, nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	return s.publicURL + "/" + s.key(bucket, path)
}

func (s *Storage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, string, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(bucket, path)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", backend.ErrObjectNotFound
		}
		return nil, "", err
	}
	ct := aws.ToString(out.ContentType)
	if ct == "" {
		ct = "application/octet-stream"
	}
	return out.Body, ct, nil
}

func (s *Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	objs := make([]types.ObjectIdentifier, 0, len(paths))
	for _, p := range paths {
		objs = append(objs, types.ObjectIdentifier{Key: aws.String(s.key(bucket, p))})
	}
	_, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objs, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", bucket, err)
	}
	return nil
}
