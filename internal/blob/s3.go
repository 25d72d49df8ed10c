package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API abstracts the single S3 operation the fetcher uses. The [s3.Client]
// type satisfies this interface.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher resolves s3://bucket/key URLs against any S3-compatible store.
type S3Fetcher struct {
	client S3API
}

var _ Fetcher = (*S3Fetcher)(nil)

// S3Config configures the object-store client. Empty credentials select
// anonymous access; Endpoint overrides the AWS default for MinIO-style
// deployments.
type S3Config struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// NewS3 builds an S3 fetcher from config.
func NewS3(cfg S3Config) *S3Fetcher {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		creds := aws.Credentials{AccessKeyID: cfg.AccessKey, SecretAccessKey: cfg.SecretKey}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	return &S3Fetcher{client: s3.New(opts)}
}

// NewS3WithClient wraps an existing client. Used by tests.
func NewS3WithClient(client S3API) *S3Fetcher {
	return &S3Fetcher{client: client}
}

// Fetch implements [Fetcher]. A missing object returns an error wrapping
// os.ErrNotExist.
func (f *S3Fetcher) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	bucket, key, err := splitS3URL(blobURL)
	if err != nil {
		return nil, err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("blob: s3 object %s: %w", blobURL, os.ErrNotExist)
		}
		return nil, fmt.Errorf("blob: s3 get %s: %w", blobURL, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("blob: s3 read %s: %w", blobURL, err)
	}
	if len(data) > maxBlobSize {
		return nil, fmt.Errorf("blob: %s exceeds %d byte limit", blobURL, maxBlobSize)
	}
	return data, nil
}

// splitS3URL parses s3://bucket/key into its parts.
func splitS3URL(blobURL string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(blobURL, "s3://")
	if !ok {
		return "", "", fmt.Errorf("blob: not an s3 url: %q", blobURL)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("blob: malformed s3 url: %q", blobURL)
	}
	return bucket, key, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
