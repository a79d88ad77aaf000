package settingsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// countingTransport counts round trips and fails them all.
type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return nil, errors.New("unexpected round trip")
}

// TestFetch_InvalidURLSkipsNetwork tests that URLs without an http(s) prefix
// are refused before the transport is invoked.
func TestFetch_InvalidURLSkipsNetwork(t *testing.T) {
	rt := &countingTransport{}
	f, err := NewFetcher(&FetcherOpts{Client: &http.Client{Transport: rt}})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	for _, u := range []string{"", "ftp://example.com/settings.xml", "example.com", "HTTP//x"} {
		t.Run(u, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), u)
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %T: %v", err, err)
			}
			if fe.Kind != InvalidURL {
				t.Errorf("expected kind InvalidURL, got %v", fe.Kind)
			}
			if !errors.Is(err, ErrInvalidURL) {
				t.Errorf("expected errors.Is ErrInvalidURL")
			}
		})
	}

	if n := rt.calls.Load(); n != 0 {
		t.Errorf("transport invoked %d times, want 0", n)
	}
}

// TestFetch_Success tests that a 200 response body is returned verbatim
// and that the fixed user agent is sent.
func TestFetch_Success(t *testing.T) {
	const body = "<settings><mirrors/></settings>"
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f, err := NewFetcher(nil)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	data, err := f.Fetch(context.Background(), srv.URL+"/settings.xml")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != body {
		t.Errorf("body = %q, want %q", data, body)
	}
	if ua, _ := gotUA.Load().(string); ua != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, DefaultUserAgent)
	}
}

// TestFetch_HTTPStatus tests that non-2xx answers map to HTTPStatus errors.
func TestFetch_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
		{"forbidden", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			f, _ := NewFetcher(nil)
			_, err := f.Fetch(context.Background(), srv.URL)
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %v", err)
			}
			if fe.Kind != HTTPStatus || fe.StatusCode != tt.code {
				t.Errorf("got kind %v code %d, want HTTPStatus %d", fe.Kind, fe.StatusCode, tt.code)
			}
			if !strings.HasPrefix(err.Error(), "HTTP error: ") {
				t.Errorf("unexpected message %q", err.Error())
			}
		})
	}
}

// TestFetch_NetworkError tests that connection failures map to Network errors.
func TestFetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	f, _ := NewFetcher(nil)
	_, err := f.Fetch(context.Background(), addr)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != Network {
		t.Errorf("expected kind Network, got %v", fe.Kind)
	}
	if fe.Cause == nil {
		t.Error("expected a cause")
	}
}

// TestFetch_Timeout tests that a slow server is cut off by the fetch timeout.
func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f, _ := NewFetcher(&FetcherOpts{Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != Network {
		t.Fatalf("expected Network error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("fetch took %v, timeout not applied", elapsed)
	}
}

// TestFetch_Progress tests that the progress callback sees the full body.
func TestFetch_Progress(t *testing.T) {
	payload := strings.Repeat("x", 100000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	var last atomic.Int64
	f, _ := NewFetcher(nil)
	f = f.WithProgress(func(read, total int64) {
		last.Store(read)
	})
	data, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if int64(len(data)) != last.Load() {
		t.Errorf("progress reported %d bytes, body has %d", last.Load(), len(data))
	}
}
