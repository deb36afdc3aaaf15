package prefixcache

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// s3API is the slice of the SDK client the backend calls. Tests substitute
// a stub.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Config holds settings for the S3 storage backend.
type S3Config struct {
	// Endpoint is the object store URL, e.g. http://127.0.0.1:9000.
	Endpoint string

	// Bucket holds every cache object, keyed by object id.
	Bucket string

	// CreateBucket creates Bucket during construction. A bucket that already
	// exists counts as success.
	CreateBucket bool

	// AccessKey and SecretKey sign requests.
	AccessKey string
	SecretKey string

	// Region is the signing region.
	Region string

	// Timeout bounds a whole request; ConnectTimeout bounds dialing.
	Timeout        time.Duration
	ConnectTimeout time.Duration

	// InsecureTLS skips certificate verification.
	InsecureTLS bool

	// Logger receives backend events.
	Logger zerolog.Logger
}

// S3Storage persists cache payloads in one bucket of an S3-compatible store.
type S3Storage struct {
	client s3API
	bucket string
	logger zerolog.Logger
}

var _ Storage = (*S3Storage)(nil)

// NewS3Storage builds the SDK client and, when asked, ensures the bucket
// exists.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ConnectTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithBaseEndpoint(cfg.Endpoint),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Transport: transport, Timeout: cfg.Timeout}),
		// Plain PUTs instead of streaming checksums, for stores that only
		// accept unchunked payloads.
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	storage := &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		logger: cfg.Logger.With().Str("component", "s3storage").Logger(),
	}

	if cfg.CreateBucket {
		if err := storage.createBucket(ctx); err != nil {
			return nil, err
		}
	}
	return storage, nil
}

func (s *S3Storage) createBucket(ctx context.Context) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info().Str("bucket", s.bucket).Msg("bucket created")
	return nil
}

func (s *S3Storage) Put(ctx context.Context, id string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(id),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", id, err)
	}
	return nil
}

func (s *S3Storage) GetRange(ctx context.Context, id string, max int64) ([]byte, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	}
	if max > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=0-%d", max-1))
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		if isObjectMissing(err) {
			return nil, ErrObjectMissing
		}
		return nil, fmt.Errorf("get object %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", id, err)
	}
	return data, nil
}

func (s *S3Storage) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

// Size counts the bucket's objects page by page.
func (s *S3Storage) Size(ctx context.Context) (int64, error) {
	var count int64
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return 0, fmt.Errorf("list objects: %w", err)
		}
		count += int64(len(out.Contents))
		if !aws.ToBool(out.IsTruncated) {
			return count, nil
		}
		token = out.NextContinuationToken
	}
}

// isObjectMissing matches the SDK's shapes for an absent key.
func isObjectMissing(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}
