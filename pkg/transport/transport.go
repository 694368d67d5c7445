// Package transport executes single requests against collector endpoints.
//
// A Client returns an error only when the transport produced no response
// at all (connectivity failure, timeout, cancellation). Any received
// response, whatever its status code, is returned as a *Response; callers
// that care about status codes inspect the response themselves.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrInvalidRequest marks a request descriptor that does not fully
// specify a request. Partial requests are never submitted.
var ErrInvalidRequest = errors.New("transport: invalid request")

// Request describes a single request to be sent.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// Validate reports whether the request is fully specified.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if r.Method == "" {
		return fmt.Errorf("%w: method is required", ErrInvalidRequest)
	}
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: url %q is missing scheme or host", ErrInvalidRequest, r.URL)
	}
	return nil
}

// Response is the received result of a request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	BytesRead  int64
}

// Client is the interface for transport implementations.
type Client interface {
	// Do executes a request. It returns an error only when no response
	// was produced; a response with any status code is a nil-error result.
	Do(ctx context.Context, req *Request) (*Response, error)

	// Close releases any resources held by the client.
	Close() error
}

// ClientConfig contains common configuration for all clients.
type ClientConfig struct {
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	TLSInsecure     bool

	// BodyLimit caps how many response body bytes are retained.
	// Zero means DefaultBodyLimit.
	BodyLimit int64
}

// DefaultBodyLimit is the response body cap applied when ClientConfig
// leaves BodyLimit unset.
const DefaultBodyLimit = 1 << 20

func (cfg ClientConfig) bodyLimit() int64 {
	if cfg.BodyLimit > 0 {
		return cfg.BodyLimit
	}
	return DefaultBodyLimit
}
