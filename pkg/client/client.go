// Package client is the AgriSense API client used by agrictl. It wraps
// authenticated JSON calls against a base URL, attaching the bearer
// token stored by Login.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agrisense/agrisense/internal/models"
)

// ErrNotLoggedIn is returned when an authenticated call is attempted
// with no stored token.
var ErrNotLoggedIn = errors.New("not logged in, run 'agrictl login'")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// Client talks to the AgriSense REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *CredentialStore

	// recommendation cache, one fetch per alert id per process
	recCache map[string][]*models.Recommendation
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCredentialStore replaces the default credentials file location.
func WithCredentialStore(store *CredentialStore) Option {
	return func(c *Client) { c.creds = store }
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		recCache: make(map[string][]*models.Recommendation),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.creds == nil {
		store, err := DefaultCredentialStore()
		if err != nil {
			return nil, err
		}
		c.creds = store
	}

	return c, nil
}

// LoggedIn reports whether a token is stored.
func (c *Client) LoggedIn() bool {
	creds, err := c.creds.Load()
	return err == nil && creds != nil && creds.AccessToken != ""
}

// Get performs an authenticated GET and decodes the data envelope into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs an authenticated POST and decodes the data envelope into out.
// A nil body sends an empty JSON object.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	creds, err := c.creds.Load()
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil || creds.AccessToken == "" {
		return ErrNotLoggedIn
	}
	return c.roundTrip(ctx, method, path, creds.AccessToken, body, out)
}

// roundTrip performs one JSON request. token may be empty for
// unauthenticated endpoints like the token endpoint itself.
func (c *Client) roundTrip(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if method == http.MethodPost {
		payload := body
		if payload == nil {
			payload = struct{}{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Data == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// decodeAPIError extracts the error envelope; a body that is not the
// expected shape still yields the HTTP status.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
