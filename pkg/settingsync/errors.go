package settingsync

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInterval is returned when an interval is outside the accepted range.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrInvalidURL is the cause carried by a FetchError of kind InvalidURL.
	ErrInvalidURL = errors.New("URL must start with http:// or https://")
	// ErrEmptyProxyURL is returned by NewHTTPClient for an empty explicit proxy.
	ErrEmptyProxyURL = errors.New("proxy URL cannot be empty")
	// ErrUnsupportedProxyScheme is returned for proxy schemes other than http, https and socks5.
	ErrUnsupportedProxyScheme = errors.New("unsupported proxy scheme")
	// ErrInvalidProxyURL is returned when the proxy URL cannot be parsed.
	ErrInvalidProxyURL = errors.New("invalid proxy URL")
	// ErrTooManyRedirects is returned when a redirect chain exceeds the configured max hops.
	ErrTooManyRedirects = errors.New("redirect loop detected")
	// ErrCrossProtocolRedirect is returned when a redirect leaves http/https.
	ErrCrossProtocolRedirect = errors.New("cross-protocol redirect not supported")
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind int

const (
	// InvalidURL means the URL was refused before any network I/O.
	InvalidURL FetchErrorKind = iota
	// Network covers DNS, connect, TLS, timeout and body read failures.
	Network
	// HTTPStatus means the server answered with a non-2xx status.
	HTTPStatus
)

func (k FetchErrorKind) String() string {
	switch k {
	case InvalidURL:
		return "invalid url"
	case Network:
		return "network"
	case HTTPStatus:
		return "http status"
	default:
		return "unknown"
	}
}

// FetchError is the structured error returned by Fetcher.Fetch.
// Use errors.As to inspect the kind and status code.
type FetchError struct {
	// Kind is the failure category.
	Kind FetchErrorKind
	// URL is the requested URL.
	URL string
	// StatusCode is set for HTTPStatus errors.
	StatusCode int
	// Cause is the underlying error, nil for HTTPStatus.
	Cause error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.Kind {
	case HTTPStatus:
		return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case InvalidURL:
		return fmt.Sprintf("invalid URL %q: %v", e.URL, ErrInvalidURL)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("network error: %v", e.Cause)
		}
		return "network error"
	}
}

// Unwrap returns the underlying cause, enabling errors.Is/As chaining.
func (e *FetchError) Unwrap() error {
	if e.Kind == InvalidURL && e.Cause == nil {
		return ErrInvalidURL
	}
	return e.Cause
}

// ReplaceError is returned by Replacer.Replace when the target cannot be written.
type ReplaceError struct {
	// Op is the failed step (e.g., "mkdir", "write", "sync", "rename").
	Op string
	// Path is the file the step operated on.
	Path string
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
// Format: "replace op path: cause"
func (e *ReplaceError) Error() string {
	return fmt.Sprintf("replace %s %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ReplaceError) Unwrap() error {
	return e.Cause
}
