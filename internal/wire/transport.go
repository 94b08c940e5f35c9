package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client wraps a retrying HTTP client for the worker agent's JSON calls
// to the coordinator and edge router (register, heartbeat, service
// discovery, reseed). Retries use retryablehttp's default exponential
// backoff, starting at 1s and capped at 60s, without jitter, instead of
// each call site hand-rolling its own loop, the way torua's
// package-level http.Client forced every caller to.
type Client struct {
	rc *retryablehttp.Client
}

// NewClient builds a Client with the given per-attempt timeout and retry
// budget. maxRetries of 0 disables retries (single attempt). A response
// that is still retryable (5xx) once the budget is spent is handed back
// to the caller, so PostJSON/GetJSON report it as a StatusError.
func NewClient(timeout time.Duration, maxRetries int) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 60 * time.Second
	rc.RetryMax = maxRetries
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil // silence retryablehttp's default stderr logging; callers log via zerolog
	rc.ErrorHandler = func(resp *http.Response, err error, _ int) (*http.Response, error) {
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}
	return &Client{rc: rc}
}

// PostJSON sends a JSON-encoded POST request and decodes the JSON
// response into out (nil to ignore the body).
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.rc.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return httpStatusError(url, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON sends a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return httpStatusError(url, resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError is returned by PostJSON/GetJSON when the remote end answers
// with a non-2xx status. Callers that need to distinguish "not found"
// (503 with available_services) from other failures can type-assert it.
type StatusError struct {
	URL  string
	Body string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %s: %d: %s", e.URL, e.Code, e.Body)
}

func httpStatusError(url string, resp *http.Response) error {
	b, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		log.Printf("wire: reading error body from %s: %v", url, readErr)
	}
	return &StatusError{URL: url, Code: resp.StatusCode, Body: string(b)}
}
