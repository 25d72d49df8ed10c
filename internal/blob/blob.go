// Package blob downloads submitted audio by URL. HTTP(S) URLs go through a
// plain client; s3:// URLs go through the AWS SDK so MinIO-style object
// stores work with path-style addressing.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBlobSize caps a single audio download at 64 MiB.
const maxBlobSize = 64 << 20

// Fetcher retrieves the raw bytes behind a submission's blob URL.
type Fetcher interface {
	Fetch(ctx context.Context, blobURL string) ([]byte, error)
}

// Router dispatches on URL scheme: s3:// to the S3 fetcher when one is
// configured, everything else to HTTP.
type Router struct {
	HTTP Fetcher
	S3   Fetcher // nil when object storage is not configured
}

var _ Fetcher = (*Router)(nil)

// Fetch implements [Fetcher].
func (r *Router) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	if strings.HasPrefix(blobURL, "s3://") {
		if r.S3 == nil {
			return nil, fmt.Errorf("blob: s3 url %q but object storage is not configured", blobURL)
		}
		return r.S3.Fetch(ctx, blobURL)
	}
	return r.HTTP.Fetch(ctx, blobURL)
}

// HTTPFetcher downloads blobs over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTP builds an HTTP fetcher with the given per-request timeout.
func NewHTTP(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch implements [Fetcher].
func (f *HTTPFetcher) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return nil, fmt.Errorf("blob: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("blob: unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, blobURL, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", blobURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blob: get %s: unexpected status %s", blobURL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", blobURL, err)
	}
	if len(data) > maxBlobSize {
		return nil, fmt.Errorf("blob: %s exceeds %d byte limit", blobURL, maxBlobSize)
	}
	return data, nil
}
