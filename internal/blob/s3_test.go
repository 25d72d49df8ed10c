package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type mockS3 struct {
	objects map[string][]byte // "bucket/key" -> data
	err     error

	lastBucket string
	lastKey    string
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.lastBucket = aws.ToString(in.Bucket)
	m.lastKey = aws.ToString(in.Key)
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.objects[m.lastBucket+"/"+m.lastKey]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "no such key"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Fetcher_Fetch(t *testing.T) {
	t.Parallel()
	mock := &mockS3{objects: map[string][]byte{"recordings/child/a.wav": []byte("wav bytes")}}
	f := NewS3WithClient(mock)

	data, err := f.Fetch(context.Background(), "s3://recordings/child/a.wav")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "wav bytes" {
		t.Errorf("Fetch = %q", data)
	}
	if mock.lastBucket != "recordings" || mock.lastKey != "child/a.wav" {
		t.Errorf("requested %s/%s, want recordings/child/a.wav", mock.lastBucket, mock.lastKey)
	}
}

func TestS3Fetcher_NotFound(t *testing.T) {
	t.Parallel()
	f := NewS3WithClient(&mockS3{objects: map[string][]byte{}})

	_, err := f.Fetch(context.Background(), "s3://recordings/missing.wav")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Fetch error = %v, want os.ErrNotExist", err)
	}
}

func TestS3Fetcher_OtherErrorsPassThrough(t *testing.T) {
	t.Parallel()
	f := NewS3WithClient(&mockS3{err: &smithy.GenericAPIError{Code: "AccessDenied"}})

	_, err := f.Fetch(context.Background(), "s3://recordings/a.wav")
	if err == nil {
		t.Fatal("Fetch succeeded, want error")
	}
	if errors.Is(err, os.ErrNotExist) {
		t.Error("AccessDenied mapped to os.ErrNotExist")
	}
}

func TestSplitS3URL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		url     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://bucket/key.wav", "bucket", "key.wav", false},
		{"s3://bucket/nested/key.wav", "bucket", "nested/key.wav", false},
		{"s3://bucket", "", "", true},
		{"s3://bucket/", "", "", true},
		{"s3:///key", "", "", true},
		{"https://bucket/key", "", "", true},
	}
	for _, tt := range tests {
		bucket, key, err := splitS3URL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitS3URL(%q) succeeded, want error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitS3URL(%q): %v", tt.url, err)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("splitS3URL(%q) = %q, %q; want %q, %q", tt.url, bucket, key, tt.bucket, tt.key)
		}
	}
}
