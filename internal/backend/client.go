// Package backend is a thin HTTP client for the capstone platform
// REST API. It handles bearer authentication, JSON marshaling,
// automatic retry with exponential backoff on HTTP 429, and a
// one-shot access-token refresh on HTTP 401.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned when a request fails with 401 and the
// token refresh did not recover it. Callers treat this as "credentials
// expired, reconfigure".
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return "authentication failed: " + e.Message
}

// Client talks to the capstone platform backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int

	mu           sync.Mutex
	accessToken  string
	refreshToken string

	// onTokens, when set, is called after a successful token refresh so
	// the caller can persist the new pair (e.g., to the system keyring).
	onTokens func(access, refresh string)
}

// NewClient creates a backend client. baseURL is the root URL of the
// platform (e.g., https://capstone.example.edu).
func NewClient(baseURL, accessToken, refreshToken string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:   3,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// OnTokensRefreshed registers a callback invoked with the new token
// pair after every successful refresh.
func (c *Client) OnTokensRefreshed(fn func(access, refresh string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTokens = fn
}

// BaseURL returns the configured backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, the one-shot token refresh,
// and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	refreshed := false
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+c.currentAccessToken())
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.New().String())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			if refreshed {
				return &ErrUnauthorized{
					Message: fmt.Sprintf("token refresh did not recover %s %s", method, path),
				}
			}
			if err := c.refreshTokens(ctx); err != nil {
				return &ErrUnauthorized{Message: err.Error()}
			}
			refreshed = true
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var apiErr ErrorResponse
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
				return fmt.Errorf(
					"backend error (%d) on %s %s: %s",
					resp.StatusCode, method, path, apiErr.Message,
				)
			}
			return fmt.Errorf(
				"unexpected status %d on %s %s: %s",
				resp.StatusCode, method, path, string(respBody),
			)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if raw, ok := result.(*[]byte); ok {
			*raw = respBody
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w", method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// refreshTokens exchanges the refresh token for a new token pair.
// Refreshes are serialized; a concurrent caller that lost the race
// still picks up the fresh access token on its retry.
func (c *Client) refreshTokens(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()

	if refresh == "" {
		return fmt.Errorf("no refresh token configured")
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refresh})
	if err != nil {
		return fmt.Errorf("marshaling refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing token refresh: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("token refresh rejected (%d)", resp.StatusCode)
	}

	var tokens refreshResponse
	if err := json.Unmarshal(respBody, &tokens); err != nil {
		return fmt.Errorf("unmarshaling refresh response: %w", err)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("token refresh returned an empty access token")
	}

	c.mu.Lock()
	c.accessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		c.refreshToken = tokens.RefreshToken
	}
	onTokens := c.onTokens
	access, newRefresh := c.accessToken, c.refreshToken
	c.mu.Unlock()

	if onTokens != nil {
		onTokens(access, newRefresh)
	}

	return nil
}

func (c *Client) currentAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
