// Package integration provides end-to-end tests for the kvgate S3 API.
package integration

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/kvgate/internal/auth"
	"github.com/prn-tf/kvgate/internal/handler"
	"github.com/prn-tf/kvgate/internal/kv"
	"github.com/prn-tf/kvgate/internal/kv/bolt"
	"github.com/prn-tf/kvgate/internal/metrics"
	"github.com/prn-tf/kvgate/internal/server"
	"github.com/prn-tf/kvgate/internal/store"
)

const (
	testAccessKey = "AKIDEXAMPLE"
	testSecretKey = "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"
	testRegion    = "us-east-1"
)

// newGateway starts a complete gateway on a throwaway bolt store and returns
// its base URL. Every request must carry a valid SigV4 signature.
func newGateway(t *testing.T) string {
	t.Helper()

	kvStore, err := bolt.New(bolt.DefaultConfig(filepath.Join(t.TempDir(), "gateway.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kvStore.Close() })

	m := metrics.New()
	verifier := auth.NewVerifier(auth.Credentials{
		AccessKeyID: testAccessKey,
		SecretKey:   testSecretKey,
	}, zerolog.Nop())

	router := handler.NewRouter(handler.RouterConfig{
		Store:          store.New(kv.Observed(kvStore, m), zerolog.Nop()),
		Verifier:       verifier,
		MaxObjectBytes: 64 << 20,
		Logger:         zerolog.Nop(),
	})

	srv := server.New(server.Config{Listen: "127.0.0.1:0"}, router, m, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts.URL
}

// newS3Client creates an AWS SDK client that signs with the gateway's keys.
func newS3Client(t *testing.T, endpoint string) *s3.Client {
	return newS3ClientWithCreds(t, endpoint, testAccessKey, testSecretKey)
}

func newS3ClientWithCreds(t *testing.T, endpoint, accessKey, secretKey string) *s3.Client {
	t.Helper()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(testRegion),
		awsconfig.WithBaseEndpoint(endpoint),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// TestBucketOperations tests basic bucket CRUD operations.
func TestBucketOperations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := newS3Client(t, newGateway(t))
	ctx := context.Background()

	bucketName := "test-bucket"

	t.Run("CreateBucket", func(t *testing.T) {
		_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
	})

	t.Run("CreateBucket_Idempotent", func(t *testing.T) {
		_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
	})

	t.Run("HeadBucket", func(t *testing.T) {
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
	})

	t.Run("ListBuckets", func(t *testing.T) {
		result, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
		require.NoError(t, err)

		found := false
		for _, bucket := range result.Buckets {
			if aws.ToString(bucket.Name) == bucketName {
				found = true
				break
			}
		}
		require.True(t, found, "created bucket should appear in list")
	})

	t.Run("DeleteBucket", func(t *testing.T) {
		_, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
	})

	t.Run("HeadBucket_NotFound", func(t *testing.T) {
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(bucketName),
		})
		require.Error(t, err)
	})
}

// TestObjectOperations tests the object round trip through the SDK.
func TestObjectOperations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := newS3Client(t, newGateway(t))
	ctx := context.Background()

	bucketName := "test-objects"
	key := "docs/hello.txt"
	body := []byte("hello kvgate integration")

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err)

	sum := md5.Sum(body)
	wantETag := fmt.Sprintf("%q", hex.EncodeToString(sum[:]))

	t.Run("PutObject", func(t *testing.T) {
		result, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("text/plain"),
		})
		require.NoError(t, err)
		require.Equal(t, wantETag, aws.ToString(result.ETag))
	})

	t.Run("GetObject", func(t *testing.T) {
		result, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
		})
		require.NoError(t, err)
		defer result.Body.Close()

		got, err := io.ReadAll(result.Body)
		require.NoError(t, err)
		require.Equal(t, body, got)
		require.Equal(t, int64(len(body)), aws.ToInt64(result.ContentLength))
		require.Equal(t, "text/plain", aws.ToString(result.ContentType))
		require.Equal(t, wantETag, aws.ToString(result.ETag))
	})

	t.Run("HeadObject", func(t *testing.T) {
		result, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
		})
		require.NoError(t, err)
		require.Equal(t, int64(len(body)), aws.ToInt64(result.ContentLength))
		require.Equal(t, wantETag, aws.ToString(result.ETag))
	})

	t.Run("DeleteObject", func(t *testing.T) {
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
		})
		require.NoError(t, err)
	})

	t.Run("GetObject_NotFound", func(t *testing.T) {
		_, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
		})
		require.Error(t, err)

		var notFound *types.NoSuchKey
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("DeleteObject_Idempotent", func(t *testing.T) {
		_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
		})
		require.NoError(t, err)
	})
}

// TestObjectRangeRequests tests partial reads through the Range header.
func TestObjectRangeRequests(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := newS3Client(t, newGateway(t))
	ctx := context.Background()

	bucketName := "test-ranges"
	key := "blob"
	body := []byte("ABCDEFGH")

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err)

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	require.NoError(t, err)

	getRange := func(t *testing.T, rng string) *s3.GetObjectOutput {
		t.Helper()
		result, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
			Range:  aws.String(rng),
		})
		require.NoError(t, err)
		return result
	}

	t.Run("BoundedRange", func(t *testing.T) {
		result := getRange(t, "bytes=0-3")
		defer result.Body.Close()

		got, err := io.ReadAll(result.Body)
		require.NoError(t, err)
		require.Equal(t, []byte("ABCD"), got)
		require.Equal(t, "bytes 0-3/8", aws.ToString(result.ContentRange))
		require.Equal(t, int64(4), aws.ToInt64(result.ContentLength))
	})

	t.Run("OpenEndedRange", func(t *testing.T) {
		result := getRange(t, "bytes=4-")
		defer result.Body.Close()

		got, err := io.ReadAll(result.Body)
		require.NoError(t, err)
		require.Equal(t, []byte("EFGH"), got)
		require.Equal(t, "bytes 4-7/8", aws.ToString(result.ContentRange))
	})

	t.Run("SuffixRange", func(t *testing.T) {
		result := getRange(t, "bytes=-2")
		defer result.Body.Close()

		got, err := io.ReadAll(result.Body)
		require.NoError(t, err)
		require.Equal(t, []byte("GH"), got)
		require.Equal(t, "bytes 6-7/8", aws.ToString(result.ContentRange))
	})

	t.Run("EndPastObject", func(t *testing.T) {
		result := getRange(t, "bytes=6-100")
		defer result.Body.Close()

		got, err := io.ReadAll(result.Body)
		require.NoError(t, err)
		require.Equal(t, []byte("GH"), got)
		require.Equal(t, "bytes 6-7/8", aws.ToString(result.ContentRange))
	})

	t.Run("StartPastObject", func(t *testing.T) {
		_, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
			Range:  aws.String("bytes=8-"),
		})
		require.Error(t, err)

		var apiErr smithy.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "InvalidRange", apiErr.ErrorCode())
	})
}

// TestListObjectsV2 tests listing, prefix filtering and pagination.
func TestListObjectsV2(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := newS3Client(t, newGateway(t))
	ctx := context.Background()

	bucketName := "test-listing"
	keys := []string{"data/a", "data/b", "data/c", "logs/x", "logs/y"}

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err)

	for _, k := range keys {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(k),
			Body:   bytes.NewReader([]byte(k)),
		})
		require.NoError(t, err)
	}

	t.Run("ListAll", func(t *testing.T) {
		result, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucketName),
		})
		require.NoError(t, err)
		require.False(t, aws.ToBool(result.IsTruncated))
		require.Equal(t, int32(len(keys)), aws.ToInt32(result.KeyCount))

		var got []string
		for _, obj := range result.Contents {
			got = append(got, aws.ToString(obj.Key))
		}
		require.Equal(t, keys, got)
	})

	t.Run("PrefixFilter", func(t *testing.T) {
		result, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucketName),
			Prefix: aws.String("logs/"),
		})
		require.NoError(t, err)
		require.Len(t, result.Contents, 2)
		require.Equal(t, "logs/x", aws.ToString(result.Contents[0].Key))
		require.Equal(t, "logs/y", aws.ToString(result.Contents[1].Key))
	})

	t.Run("Pagination", func(t *testing.T) {
		var got []string
		var token *string
		pages := 0

		for {
			result, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(bucketName),
				MaxKeys:           aws.Int32(2),
				ContinuationToken: token,
			})
			require.NoError(t, err)

			pages++
			for _, obj := range result.Contents {
				got = append(got, aws.ToString(obj.Key))
			}
			if !aws.ToBool(result.IsTruncated) {
				break
			}
			token = result.NextContinuationToken
			require.NotNil(t, token)
		}

		require.Equal(t, keys, got)
		require.Equal(t, 3, pages)
	})

	t.Run("ObjectSizes", func(t *testing.T) {
		result, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucketName),
			Prefix: aws.String("data/a"),
		})
		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		require.Equal(t, int64(len("data/a")), aws.ToInt64(result.Contents[0].Size))
	})
}

// TestDeleteBucketNotEmpty tests that buckets still holding objects refuse
// deletion until they are emptied.
func TestDeleteBucketNotEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client := newS3Client(t, newGateway(t))
	ctx := context.Background()

	bucketName := "test-nonempty"

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err)

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String("blocker"),
		Body:   bytes.NewReader([]byte("x")),
	})
	require.NoError(t, err)

	_, err = client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.Error(t, err)

	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "BucketNotEmpty", apiErr.ErrorCode())

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String("blocker"),
	})
	require.NoError(t, err)

	_, err = client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err)
}

// TestAuthentication tests that the gateway rejects bad credentials.
func TestAuthentication(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	endpoint := newGateway(t)
	ctx := context.Background()

	t.Run("WrongSecret", func(t *testing.T) {
		client := newS3ClientWithCreds(t, endpoint, testAccessKey, "not-the-secret")

		_, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
		require.Error(t, err)

		var apiErr smithy.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "SignatureDoesNotMatch", apiErr.ErrorCode())
	})

	t.Run("UnknownAccessKey", func(t *testing.T) {
		client := newS3ClientWithCreds(t, endpoint, "AKIDUNKNOWN", testSecretKey)

		_, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
		require.Error(t, err)

		var apiErr smithy.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "InvalidAccessKeyId", apiErr.ErrorCode())
	})

	t.Run("ValidCredentials", func(t *testing.T) {
		client := newS3Client(t, endpoint)

		_, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
		require.NoError(t, err)
	})
}
