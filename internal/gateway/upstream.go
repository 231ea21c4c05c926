package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arc-self/riskstream/internal/retry"
)

// retryableStatuses: upstream calls retry only on these statuses or on
// network/timeout errors; everything else is terminal.
var retryableStatuses = map[int]bool{408: true, 409: true, 425: true, 429: true}

func isRetryableStatus(status int) bool {
	return retryableStatuses[status] || status >= 500
}

// UpstreamHTTPError wraps a non-2xx upstream response status.
type UpstreamHTTPError struct {
	Status int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("gateway: upstream returned status %d", e.Status)
}

// PostJSON issues a POST request to url with body, retrying on
// retryable statuses or network/timeout errors on a full-jitter
// exponential schedule bounded by maxAttempts (default 3). On timeout,
// status 408 is surfaced to the retry policy.
func PostJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string, timeout time.Duration, maxAttempts int, baseDelayMs int64) ([]byte, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var respBody []byte
	err := retry.Do(ctx, retry.Options{Attempts: maxAttempts, BaseDelayMs: baseDelayMs}, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err // not retryable, but Do doesn't distinguish; malformed requests fail fast anyway
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if reqCtx.Err() != nil {
				return &UpstreamHTTPError{Status: 408}
			}
			return err // network error, retryable
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := &UpstreamHTTPError{Status: resp.StatusCode}
			if !isRetryableStatus(resp.StatusCode) {
				return &retry.Permanent{Err: httpErr}
			}
			return httpErr
		}

		respBody = data
		return nil
	})

	return respBody, err
}

// GetJSON issues a GET request to url, retrying on retryable statuses or
// network/timeout errors with the same schedule as PostJSON. Used by
// polling connector fetchers against a JSON HTTP source.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, timeout time.Duration, maxAttempts int, baseDelayMs int64) ([]byte, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var respBody []byte
	err := retry.Do(ctx, retry.Options{Attempts: maxAttempts, BaseDelayMs: baseDelayMs}, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if reqCtx.Err() != nil {
				return &UpstreamHTTPError{Status: 408}
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := &UpstreamHTTPError{Status: resp.StatusCode}
			if !isRetryableStatus(resp.StatusCode) {
				return &retry.Permanent{Err: httpErr}
			}
			return httpErr
		}

		respBody = data
		return nil
	})

	return respBody, err
}
