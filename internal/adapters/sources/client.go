package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultHTTPTimeout       = 15 * time.Second
	defaultRequestsPerMinute = 120
	maxErrorBody             = 200
)

// httpClient is the rate-limited transport shared by the HTTP adapters.
type httpClient struct {
	http    *http.Client
	limiter *rate.Limiter
	headers http.Header
}

func newHTTPClient(client *http.Client, requestsPerMinute int, headers http.Header) *httpClient {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = defaultRequestsPerMinute
	}
	rps := float64(requestsPerMinute) / 60.0
	return &httpClient{
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		headers: headers,
	}
}

// statusError carries the HTTP status of a rejected request.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %d: %s", ErrSourceStatus, e.Code, e.Body)
}

func (e *statusError) Unwrap() error { return ErrSourceStatus }

// get performs a rate-limited GET and returns the body of a 200 response.
func (c *httpClient) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: truncate(body, maxErrorBody)}
	}
	return body, nil
}

func (c *httpClient) getJSON(ctx context.Context, url string, out any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// truncate returns a truncated string for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
