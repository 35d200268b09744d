// Package storage provides an S3-compatible shared snapshot store. It wraps
// the AWS SDK v2 and uses path-style addressing so that MinIO, Ceph and
// other S3-compatible services work unchanged.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
	"github.com/matzehuels/shelfmark/pkg/snapshot"
)

// ParquetContentType is the media type recorded on uploaded snapshots.
const ParquetContentType = "application/vnd.apache.parquet"

// Options configures an [S3] store.
type Options struct {
	Endpoint  string // e.g. https://s3.eu-central-1.amazonaws.com or http://localhost:9000
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string       // key prefix inside the bucket, e.g. "datasets/"
	HTTP      *http.Client // nil uses the SDK default
}

// S3 stores snapshots as objects named {Prefix}{filename}.
type S3 struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 snapshot store. Without an access key the client
// sends anonymous requests, which suits public read-only buckets.
func NewS3(opts Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "s3: bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	// Checksums only when the API requires them; several S3-compatible
	// servers reject the newer default integrity headers.
	s3opts := s3.Options{
		Region:                     opts.Region,
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if opts.Endpoint != "" {
		s3opts.BaseEndpoint = aws.String(strings.TrimRight(opts.Endpoint, "/"))
	}
	if opts.AccessKey != "" {
		s3opts.Credentials = credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
	} else {
		s3opts.Credentials = aws.AnonymousCredentials{}
	}
	if opts.HTTP != nil {
		s3opts.HTTPClient = opts.HTTP
	}

	return &S3{
		s3:     s3.New(s3opts),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

func (s *S3) key(filename string) string {
	return path.Join(s.prefix, filename)
}

// Exists reports whether the snapshot object exists.
func (s *S3) Exists(ctx context.Context, filename string) (bool, error) {
	_, err := s.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(filename)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s/%s: %w", s.bucket, s.key(filename), err)
}

// Download retrieves the snapshot object.
func (s *S3) Download(ctx context.Context, filename string) ([]byte, error) {
	key := s.key(filename)
	output, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, err, "s3 object %s/%s", s.bucket, key)
		}
		return nil, fmt.Errorf("s3 download %s/%s: %w", s.bucket, key, err)
	}
	defer output.Body.Close()
	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Upload stores the snapshot object, replacing any existing one.
func (s *S3) Upload(ctx context.Context, filename string, data []byte) error {
	key := s.key(filename)
	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ParquetContentType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *s3types.NotFound
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ snapshot.Remote = (*S3)(nil)
