package transport

import (
	"context"

	"github.com/beaconlabs/beacon/pkg/promise"
)

// AsyncClient adapts a Client's blocking Do into a promise-returning
// Submit. Each Submit issues exactly one underlying request; the wrapper
// adds no retry, caching, or pooling of its own.
type AsyncClient struct {
	c Client
}

// NewAsyncClient wraps a transport client.
func NewAsyncClient(c Client) *AsyncClient {
	return &AsyncClient{c: c}
}

// Submit issues the request on its own goroutine and returns immediately.
// The promise fulfills with any received response, whatever its status
// code, and rejects only when the transport produced no response at all
// (connectivity failure, timeout, cancellation) or when the descriptor is
// invalid, in which case no request is issued. Concurrent submissions are
// independent; each promise resolves solely from its own request.
func (a *AsyncClient) Submit(ctx context.Context, req *Request) *promise.Promise[*Response] {
	p := promise.New[*Response]()

	if err := req.Validate(); err != nil {
		p.Reject(err)
		return p
	}

	go func() {
		resp, err := a.c.Do(ctx, req)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Fulfill(resp)
	}()

	return p
}

// Close releases the underlying client's resources.
func (a *AsyncClient) Close() error {
	return a.c.Close()
}
