package rest

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

	"github.com/hassmon/hassmon-go/pkg/model"
)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// APIError reports a request the hub answered with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("hub API error (status %d): %s", e.StatusCode, e.Message)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the hub's HTTP address, e.g. "http://homeassistant.local:8123".
	BaseURL string

	// Token is the long-lived access token.
	Token string

	// Timeout bounds each request. Zero takes DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the transport. Nil builds one from Timeout.
	HTTPClient *http.Client
}

// Client talks to the hub's HTTP API. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    httpClient,
	}, nil
}

// States returns the current state of every entity the token can see.
func (c *Client) States(ctx context.Context) ([]model.EntityState, error) {
	var states []model.EntityState
	if err := c.get(ctx, "/api/states", &states); err != nil {
		return nil, err
	}
	return states, nil
}

// State returns the current state of one entity.
func (c *Client) State(ctx context.Context, entityID string) (*model.EntityState, error) {
	var state model.EntityState
	if err := c.get(ctx, "/api/states/"+url.PathEscape(entityID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Ping checks that the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var body struct {
		Message string `json:"message"`
	}
	return c.get(ctx, "/api/", &body)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(readCapped(resp.Body)))
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// readCapped drains up to 4 KiB of an error body for the message.
func readCapped(r io.Reader) []byte {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	return data
}
