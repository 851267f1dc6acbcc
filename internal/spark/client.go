// Package spark provides a minimal client for the chat platform REST API.
package spark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public platform API endpoint.
const DefaultBaseURL = "https://api.ciscospark.com"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// ErrMissingToken is returned when a request needs credentials the client does not have.
var ErrMissingToken = errors.New("spark: access token not configured")

// StatusError is returned when the platform answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
	TrackingID string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spark: unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("spark: unexpected status %d", e.StatusCode)
}

// IsStatusError reports whether err (or anything it wraps) is a StatusError.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Client is a platform API client authenticated with a bearer token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// GetMessage fetches a message by id. The raw body is returned undecoded so
// callers can apply their own validation.
func (c *Client) GetMessage(ctx context.Context, id string) ([]byte, error) {
	if c.Token == "" {
		return nil, ErrMissingToken
	}
	return c.get(ctx, "/v1/messages/"+url.PathEscape(id))
}

// get performs an authenticated GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spark: request failed: %w", err)
	}
	defer func(Body io.ReadCloser) { _ = Body.Close() }(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("spark: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Message    string `json:"message"`
			TrackingID string `json:"trackingId"`
		}
		_ = json.Unmarshal(body, &errResp)
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errResp.Message,
			TrackingID: errResp.TrackingID,
		}
	}

	return body, nil
}
