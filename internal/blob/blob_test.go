package blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/a.wav" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("wav bytes"))
	}))
	defer srv.Close()

	f := NewHTTP(5 * time.Second)
	data, err := f.Fetch(context.Background(), srv.URL+"/audio/a.wav")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "wav bytes" {
		t.Errorf("Fetch = %q", data)
	}
}

func TestHTTPFetcher_Non200(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTP(5 * time.Second)
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.wav"); err == nil {
		t.Error("Fetch succeeded on 404")
	}
}

func TestHTTPFetcher_RejectsScheme(t *testing.T) {
	t.Parallel()
	f := NewHTTP(time.Second)
	if _, err := f.Fetch(context.Background(), "ftp://host/a.wav"); err == nil {
		t.Error("Fetch accepted ftp URL")
	}
	if _, err := f.Fetch(context.Background(), "://bad"); err == nil {
		t.Error("Fetch accepted malformed URL")
	}
}

func TestHTTPFetcher_ContextCancellation(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewHTTP(time.Minute)
	if _, err := f.Fetch(ctx, srv.URL+"/slow.wav"); err == nil {
		t.Error("Fetch succeeded past context deadline")
	}
}

type stubFetcher struct {
	lastURL string
	data    []byte
}

func (s *stubFetcher) Fetch(_ context.Context, blobURL string) ([]byte, error) {
	s.lastURL = blobURL
	return s.data, nil
}

func TestRouter_Dispatch(t *testing.T) {
	t.Parallel()
	httpF := &stubFetcher{data: []byte("http")}
	s3F := &stubFetcher{data: []byte("s3")}
	r := &Router{HTTP: httpF, S3: s3F}

	data, err := r.Fetch(context.Background(), "https://blobs/a.wav")
	if err != nil || string(data) != "http" {
		t.Errorf("https fetch = %q, %v", data, err)
	}
	data, err = r.Fetch(context.Background(), "s3://bucket/a.wav")
	if err != nil || string(data) != "s3" {
		t.Errorf("s3 fetch = %q, %v", data, err)
	}
	if s3F.lastURL != "s3://bucket/a.wav" {
		t.Errorf("s3 fetcher saw %q", s3F.lastURL)
	}
}

func TestRouter_S3Unconfigured(t *testing.T) {
	t.Parallel()
	r := &Router{HTTP: &stubFetcher{}}
	if _, err := r.Fetch(context.Background(), "s3://bucket/a.wav"); err == nil {
		t.Error("Fetch succeeded for s3 URL without object storage")
	}
}
