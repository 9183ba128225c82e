// Package testutil holds test doubles shared by package tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MemoryS3 is an in-memory bucket implementing the S3 calls the object store makes.
// Setting an entry in Fail makes every call of that method (or of that method
// for one key, via FailKeys) return the error.
type MemoryS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	calls    map[string]int
	Fail     map[string]error
	FailKeys map[string]error
}

func NewMemoryS3() *MemoryS3 {
	return &MemoryS3{
		objects:  make(map[string][]byte),
		calls:    make(map[string]int),
		Fail:     make(map[string]error),
		FailKeys: make(map[string]error),
	}
}

func (m *MemoryS3) record(method, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	if err, ok := m.FailKeys[method+" "+key]; ok {
		return err
	}
	return m.Fail[method]
}

func (m *MemoryS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	if err := m.record("PutObject", key); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (m *MemoryS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	if err := m.record("GetObject", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	data, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *MemoryS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(params.Key)
	if err := m.record("HeadObject", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	data, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (m *MemoryS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(params.Key)
	if err := m.record("DeleteObject", key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (m *MemoryS3) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	key := aws.ToString(params.Key)
	if err := m.record("PresignGetObject", key); err != nil {
		return nil, err
	}
	return &v4.PresignedHTTPRequest{
		URL:    "https://signed.example.com/" + aws.ToString(params.Bucket) + "/" + key + "?X-Amz-Signature=test",
		Method: http.MethodGet,
	}, nil
}

// Object returns the stored content of key.
func (m *MemoryS3) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *MemoryS3) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Calls returns how many times method was invoked, including failed calls.
func (m *MemoryS3) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MemoryS3) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}
