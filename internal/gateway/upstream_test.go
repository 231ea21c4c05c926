package gateway_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/gateway"
)

func TestPostJSONSucceedsOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"hello":"world"}`, string(body))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := gateway.PostJSON(context.Background(), srv.Client(), srv.URL, []byte(`{"hello":"world"}`), nil, time.Second, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp))
}

// TestPostJSONRetriesRetryableStatusThenSucceeds covers the retry
// schedule on a retryable status (429) before the upstream recovers.
func TestPostJSONRetriesRetryableStatusThenSucceeds(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := gateway.PostJSON(context.Background(), srv.Client(), srv.URL, []byte(`{}`), nil, time.Second, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp))
	assert.Equal(t, int64(3), attempts.Load())
}

// TestPostJSONDoesNotRetryNonRetryableStatus: a terminal 400 must be
// returned after exactly one attempt, not retried.
func TestPostJSONDoesNotRetryNonRetryableStatus(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := gateway.PostJSON(context.Background(), srv.Client(), srv.URL, []byte(`{}`), nil, time.Second, 5, 1)
	require.Error(t, err)
	var httpErr *gateway.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, int64(1), attempts.Load())
}

// TestPostJSONExhaustsRetriesOnPersistentServerError covers retry
// exhaustion on a persistently retryable status (500).
func TestPostJSONExhaustsRetriesOnPersistentServerError(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := gateway.PostJSON(context.Background(), srv.Client(), srv.URL, []byte(`{}`), nil, time.Second, 3, 1)
	require.Error(t, err)
	var httpErr *gateway.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, int64(3), attempts.Load())
}

// TestPostJSONSurfacesTimeoutAs408 covers the timeout-maps-to-408
// retryable-status rule.
func TestPostJSONSurfacesTimeoutAs408(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := gateway.PostJSON(context.Background(), srv.Client(), srv.URL, []byte(`{}`), nil, 5*time.Millisecond, 2, 1)
	require.Error(t, err)
	var httpErr *gateway.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusRequestTimeout, httpErr.Status)
}

func TestGetJSONSucceedsOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	resp, err := gateway.GetJSON(context.Background(), srv.Client(), srv.URL, nil, time.Second, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(resp))
}

// TestGetJSONRetriesRetryableStatusThenSucceeds mirrors the POST
// retry-schedule test, grounding that GET shares the same policy.
func TestGetJSONRetriesRetryableStatusThenSucceeds(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := gateway.GetJSON(context.Background(), srv.Client(), srv.URL, nil, time.Second, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp))
	assert.Equal(t, int64(3), attempts.Load())
}

func TestGetJSONDoesNotRetryNonRetryableStatus(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := gateway.GetJSON(context.Background(), srv.Client(), srv.URL, nil, time.Second, 5, 1)
	require.Error(t, err)
	var httpErr *gateway.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, int64(1), attempts.Load())
}
