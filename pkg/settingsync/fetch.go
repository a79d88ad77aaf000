package settingsync

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultUserAgent is sent with every settings request.
	DefaultUserAgent = "AutoUpdateMavenSettings/1.0"
	// DefaultFetchTimeout bounds a single fetch including the body read.
	DefaultFetchTimeout = 30 * time.Second
)

// ProgressFunc receives the number of body bytes read so far and the
// expected total (-1 when the server sent no Content-Length).
type ProgressFunc func(read, total int64)

// FetcherOpts configures a Fetcher. Zero values select the defaults.
type FetcherOpts struct {
	// Client performs the request. Defaults to a client from NewHTTPClient
	// with environment proxy handling.
	Client *http.Client
	// Timeout bounds the whole request. Defaults to DefaultFetchTimeout.
	Timeout time.Duration
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
	// Progress, when set, is called as the body is read.
	Progress ProgressFunc
}

// Fetcher performs one HTTP GET per call. It never retries.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	progress  ProgressFunc
}

// NewFetcher creates a Fetcher from opts.
func NewFetcher(opts *FetcherOpts) (*Fetcher, error) {
	if opts == nil {
		opts = &FetcherOpts{}
	}
	f := &Fetcher{
		client:    opts.Client,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		progress:  opts.Progress,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultFetchTimeout
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.client == nil {
		client, err := NewHTTPClient("", f.timeout)
		if err != nil {
			return nil, err
		}
		f.client = client
	}
	return f, nil
}

// WithProgress returns a copy of f reporting body progress to fn.
func (f *Fetcher) WithProgress(fn ProgressFunc) *Fetcher {
	cp := *f
	cp.progress = fn
	return &cp
}

// Fetch downloads url and returns the full body.
//
// A URL without an http:// or https:// prefix fails with a FetchError of
// kind InvalidURL before any network I/O. A non-2xx answer fails with kind
// HTTPStatus; everything else (DNS, connect, TLS, timeout, body read) is
// reported as kind Network.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if !IsDispatchableURL(url) {
		return nil, &FetchError{Kind: InvalidURL, URL: url, Cause: ErrInvalidURL}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: InvalidURL, URL: url, Cause: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: Network, URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{Kind: HTTPStatus, URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.progress != nil {
		body = &progressReader{r: resp.Body, total: resp.ContentLength, fn: f.progress}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &FetchError{Kind: Network, URL: url, Cause: err}
	}
	return data, nil
}

type progressReader struct {
	r     io.Reader
	read  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.fn(p.read, p.total)
	}
	return n, err
}
