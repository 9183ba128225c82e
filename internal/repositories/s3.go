package repositories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rohits-web03/meetingvault/internal/config"
	"github.com/rohits-web03/meetingvault/internal/metrics"
	"github.com/rohits-web03/meetingvault/internal/models"
)

const (
	audioPrefix      = "wav_files/"
	summaryPrefix    = "txt_files/summary_"
	transcriptPrefix = "txt_files/whole_"
)

// AudioKey, SummaryKey and TranscriptKey keep the bucket layout used by
// existing objects. Original filenames are used as-is, so equal names overwrite.
func AudioKey(filename string) string      { return audioPrefix + filename }
func SummaryKey(filename string) string    { return summaryPrefix + filename }
func TranscriptKey(filename string) string { return transcriptPrefix + filename }

// S3API is the subset of *s3.Client the object store calls.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectStore keeps meeting files in one bucket and derives a stable public URL per key.
type ObjectStore struct {
	client    S3API
	presigner Presigner
	bucket    string
	baseURL   string
}

// NewS3Client builds an S3 client from static credentials. A custom endpoint
// points it at an S3-compatible service instead of AWS.
func NewS3Client(cfg config.S3Config) *s3.Client {
	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:      cfg.Region,
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
}

func NewObjectStore(client S3API, presigner Presigner, cfg config.S3Config) *ObjectStore {
	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.BucketName, cfg.Region)
	}
	return &ObjectStore{
		client:    client,
		presigner: presigner,
		bucket:    cfg.BucketName,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// NewObjectStoreFromConfig wires a real S3 client and presigner.
func NewObjectStoreFromConfig(cfg config.S3Config) *ObjectStore {
	client := NewS3Client(cfg)
	return NewObjectStore(client, s3.NewPresignClient(client), cfg)
}

// URLFor derives the public URL of key. The same key always yields the same URL.
func (s *ObjectStore) URLFor(key string) string {
	return s.baseURL + "/" + key
}

// KeyFromURL is the inverse of URLFor.
func (s *ObjectStore) KeyFromURL(rawURL string) (string, error) {
	key, ok := strings.CutPrefix(rawURL, s.baseURL+"/")
	if !ok {
		if host, isHTTPS := strings.CutPrefix(s.baseURL, "https://"); isHTTPS {
			key, ok = strings.CutPrefix(rawURL, "http://"+host+"/")
		}
	}
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %q is not an object URL of bucket %s", models.ErrMalformedURL, rawURL, s.bucket)
	}
	return key, nil
}

// Put stores data under key, overwriting any existing object, and returns its URL.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := s.client.PutObject(ctx, input)
	metrics.RecordObjectStoreRequest("put", err)
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", models.ErrStorageUnavailable, key, err)
	}
	return s.URLFor(key), nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		err = nil
	}
	metrics.RecordObjectStoreRequest("delete", err)
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", models.ErrStorageUnavailable, key, err)
	}
	return nil
}

// Get returns the object content; found is false when key does not exist.
func (s *ObjectStore) Get(ctx context.Context, key string) (data []byte, found bool, err error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		metrics.RecordObjectStoreRequest("get", nil)
		return nil, false, nil
	}
	if err == nil {
		defer out.Body.Close()
		data, err = io.ReadAll(out.Body)
	}
	metrics.RecordObjectStoreRequest("get", err)
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %w", models.ErrStorageUnavailable, key, err)
	}
	return data, true, nil
}

// Exists checks if a given object key exists in the bucket.
func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		metrics.RecordObjectStoreRequest("head", nil)
		return false, nil
	}
	metrics.RecordObjectStoreRequest("head", err)
	if err != nil {
		return false, fmt.Errorf("%w: head %s: %w", models.ErrStorageUnavailable, key, err)
	}
	return true, nil
}

// PresignGet creates a temporary download URL for key.
func (s *ObjectStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	if s.presigner == nil {
		return "", fmt.Errorf("%w: presigning is not configured", models.ErrStorageUnavailable)
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	metrics.RecordObjectStoreRequest("presign", err)
	if err != nil {
		return "", fmt.Errorf("%w: presign %s: %w", models.ErrStorageUnavailable, key, err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
