package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPDo(t *testing.T) {
	var gotMethod, gotHeader string
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Beacon-Key")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	defer ts.Close()

	c := NewHTTPClient(ClientConfig{})
	defer c.Close()

	resp, err := c.Do(context.Background(), &Request{
		URL:     ts.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"X-Beacon-Key": "k-123"},
		Body:    []byte(`{"events":1}`),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "k-123", gotHeader)
	require.Equal(t, []byte(`{"events":1}`), gotBody)
	require.Equal(t, "application/json", resp.Headers.Get("Content-Type"))
	require.Equal(t, []byte(`{"accepted":true}`), resp.Body)
	require.Equal(t, int64(len(resp.Body)), resp.BytesRead)
	require.Greater(t, resp.Duration, time.Duration(0))
}

func TestHTTPDoErrorStatusIsStillAResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "spool full", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewHTTPClient(ClientConfig{})
	defer c.Close()

	resp, err := c.Do(context.Background(), &Request{URL: ts.URL, Method: http.MethodGet})
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPDoConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewHTTPClient(ClientConfig{})
	defer c.Close()

	resp, err := c.Do(context.Background(), &Request{URL: url, Method: http.MethodGet})
	require.Error(t, err)
	require.Nil(t, resp)
}

func TestHTTPDoTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c := NewHTTPClient(ClientConfig{})
	defer c.Close()

	resp, err := c.Do(context.Background(), &Request{
		URL:     ts.URL,
		Method:  http.MethodGet,
		Timeout: 20 * time.Millisecond,
	})
	require.Error(t, err)
	require.Nil(t, resp)
}

func TestHTTPDoContextCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c := NewHTTPClient(ClientConfig{})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Do(ctx, &Request{URL: ts.URL, Method: http.MethodGet})
	require.ErrorIs(t, err, context.Canceled)
}

func TestHTTPDoBodyLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer ts.Close()

	c := NewHTTPClient(ClientConfig{BodyLimit: 128})
	defer c.Close()

	resp, err := c.Do(context.Background(), &Request{URL: ts.URL, Method: http.MethodGet})
	require.NoError(t, err)
	require.Len(t, resp.Body, 128)
}

func TestHTTPDoNoRedirectFollow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://elsewhere.local/", http.StatusMovedPermanently)
	}))
	defer ts.Close()

	c := NewHTTPClient(ClientConfig{})
	defer c.Close()

	resp, err := c.Do(context.Background(), &Request{URL: ts.URL, Method: http.MethodGet})
	require.NoError(t, err)
	require.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	require.Equal(t, "http://elsewhere.local/", resp.Headers.Get("Location"))
}
