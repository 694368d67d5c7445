package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubClient scripts transport outcomes and counts calls.
type stubClient struct {
	mu    sync.Mutex
	calls int
	do    func(ctx context.Context, req *Request) (*Response, error)
}

func (s *stubClient) Do(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.do(ctx, req)
}

func (s *stubClient) Close() error { return nil }

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func validRequest() *Request {
	return &Request{URL: "http://collector.local/v1/diagnostics", Method: http.MethodPost}
}

func TestSubmitFulfillsOnAnyStatus(t *testing.T) {
	for _, status := range []int{200, 404, 500} {
		stub := &stubClient{do: func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{StatusCode: status}, nil
		}}
		a := NewAsyncClient(stub)

		resp, err := a.Submit(context.Background(), validRequest()).Await(context.Background())
		require.NoError(t, err)
		require.Equal(t, status, resp.StatusCode)
		require.Equal(t, 1, stub.callCount())
	}
}

func TestSubmitRejectsOnTransportFailure(t *testing.T) {
	noConn := errors.New("no connection")
	stub := &stubClient{do: func(ctx context.Context, req *Request) (*Response, error) {
		return nil, noConn
	}}
	a := NewAsyncClient(stub)

	resp, err := a.Submit(context.Background(), validRequest()).Await(context.Background())
	require.ErrorIs(t, err, noConn)
	require.Nil(t, resp)
	require.Equal(t, 1, stub.callCount())
}

func TestSubmitInvalidRequest(t *testing.T) {
	stub := &stubClient{do: func(ctx context.Context, req *Request) (*Response, error) {
		t.Error("transport must not be called for a partial request")
		return nil, nil
	}}
	a := NewAsyncClient(stub)

	for _, req := range []*Request{
		nil,
		{Method: http.MethodGet},
		{URL: "http://collector.local"},
		{URL: "://bad", Method: http.MethodGet},
		{URL: "collector.local/no-scheme", Method: http.MethodGet},
	} {
		_, err := a.Submit(context.Background(), req).Await(context.Background())
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
	require.Equal(t, 0, stub.callCount())
}

func TestSubmitReturnsImmediately(t *testing.T) {
	release := make(chan struct{})
	stub := &stubClient{do: func(ctx context.Context, req *Request) (*Response, error) {
		<-release
		return &Response{StatusCode: 200}, nil
	}}
	a := NewAsyncClient(stub)

	p := a.Submit(context.Background(), validRequest())
	_, _, resolved := p.Poll()
	require.False(t, resolved, "Submit must not block on the transport")

	close(release)
	resp, err := p.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
}

func TestSubmitIndependentPromises(t *testing.T) {
	noConn := errors.New("no connection")
	stub := &stubClient{do: func(ctx context.Context, req *Request) (*Response, error) {
		if req.URL == "http://collector.local/fails" {
			return nil, noConn
		}
		return &Response{StatusCode: 202}, nil
	}}
	a := NewAsyncClient(stub)

	ok := a.Submit(context.Background(), &Request{URL: "http://collector.local/ok", Method: http.MethodPost})
	bad := a.Submit(context.Background(), &Request{URL: "http://collector.local/fails", Method: http.MethodPost})

	resp, err := ok.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 202, resp.StatusCode)

	_, err = bad.Await(context.Background())
	require.ErrorIs(t, err, noConn)

	require.Equal(t, 2, stub.callCount())
}

func TestSubmitAgainstHTTPServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	defer ts.Close()

	c := NewHTTPClient(ClientConfig{MaxIdleConns: 2, IdleConnTimeout: time.Second})
	defer c.Close()
	a := NewAsyncClient(c)

	resp, err := a.Submit(context.Background(), &Request{URL: ts.URL, Method: http.MethodGet}).
		Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Equal(t, []byte("short and stout"), resp.Body)
}
