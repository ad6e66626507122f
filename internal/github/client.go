package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// acceptHeader selects the v3 REST media type.
	acceptHeader = "application/vnd.github.v3+json"
	// defaultTimeout bounds a dispatch request when none is configured.
	defaultTimeout = 30 * time.Second
	// drainLimit caps how much of a response body is read before closing it.
	drainLimit = 64 << 10
)

var (
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected http status")

	errURLRequired       = errors.New("dispatch URL must be provided")
	errTokenRequired     = errors.New("token must be provided")
	errEventTypeRequired = errors.New("event type must be provided")
)

// DispatchRequest is the JSON body of a repository_dispatch call.
type DispatchRequest struct {
	EventType     string         `json:"event_type"`
	ClientPayload map[string]any `json:"client_payload,omitempty"`
}

// DispatchResponse describes the answer of the API.
type DispatchResponse struct {
	// StatusCode is the HTTP status returned by the API.
	StatusCode int
	// Status is the HTTP status line text.
	Status string
}

// OK reports whether the API accepted the event.
func (r *DispatchResponse) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Client posts dispatch events to one endpoint.
type Client struct {
	// url is the dispatches endpoint.
	url string
	// token authenticates the request.
	token string
	// userAgent is sent with every request.
	userAgent string

	httpClient *http.Client
}

// Option configures client behaviour.
type Option func(*Client)

// WithTimeout sets the HTTP timeout for dispatch calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{
				Timeout:   timeout,
				Transport: c.httpClient.Transport,
			}
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a dispatch client for url authenticated with token.
func NewClient(url, token string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errURLRequired
	}

	if token == "" {
		return nil, errTokenRequired
	}

	client := &Client{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// NewRequest builds the dispatch request without sending it.
func (c *Client) NewRequest(ctx context.Context, payload *DispatchRequest) (*http.Request, error) {
	if payload == nil || payload.EventType == "" {
		return nil, errEventTypeRequired
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create dispatch request: %w", err)
	}

	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	return req, nil
}

// Dispatch sends one repository_dispatch event. Transport failures are
// returned as errors; the HTTP status is reported in the response and left
// to the caller to judge.
func (c *Client) Dispatch(ctx context.Context, payload *DispatchRequest) (*DispatchResponse, error) {
	req, err := c.NewRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send dispatch: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
		_ = resp.Body.Close()
	}()

	return &DispatchResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}, nil
}

// CheckStatus turns a non-2xx response into ErrUnexpectedStatus.
// The response body is never included to avoid leaking API details.
func CheckStatus(resp *DispatchResponse) error {
	if resp.OK() {
		return nil
	}

	return fmt.Errorf("GitHub API answered %s: %w", resp.Status, ErrUnexpectedStatus)
}
