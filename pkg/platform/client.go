package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPClient retries 5xx responses and transport errors with exponential
// backoff. 4xx responses are returned to the caller untouched.
type HTTPClient struct {
	Client  *http.Client
	Retries int
	Backoff time.Duration
	Logger  *zap.Logger
}

func NewHTTPClient(retries int, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		Retries: retries,
		Backoff: 200 * time.Millisecond,
		Logger:  zap.NewNop(),
	}
}

// StatusError is returned by GetJSON for a non-2xx final response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Get fetches url with retries. Callers close the body.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, url)
}

// GetJSON fetches url and decodes a 2xx JSON body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.do(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response
	var err error

	for i := 0; i <= c.Retries; i++ {
		req, rErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if rErr != nil {
			return nil, rErr
		}
		req.Header.Set("Accept", "application/json")

		resp, err = c.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if i < c.Retries {
			if resp != nil {
				resp.Body.Close()
			}
			c.logger().Warn("HTTP request failed, retrying",
				zap.String("url", url),
				zap.Int("attempt", i+1),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<i) * c.backoff()):
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after %d retries: %w", c.Retries, err)
	}
	return resp, nil // last 5xx response
}

func (c *HTTPClient) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *HTTPClient) backoff() time.Duration {
	if c.Backoff <= 0 {
		return 200 * time.Millisecond
	}
	return c.Backoff
}
