package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientConfig contains configuration for the API client.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.com".
	BaseURL string

	// APIKey is sent as a bearer token on every request.
	APIKey string

	// Timeout is the per-request timeout.
	// Default: 60 seconds
	Timeout time.Duration

	// PageLimit is the page size requested from the fetch endpoint.
	// Default: 1000
	PageLimit int

	// MaxIdleConns is the connection pool size.
	// Default: 10
	MaxIdleConns int

	// MaxIdleConnsPerHost limits idle connections per host.
	// Default: 10
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	// Default: 90 seconds
	IdleConnTimeout time.Duration
}

// applyDefaults fills zero-valued fields with defaults.
func (c *ClientConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.PageLimit <= 0 {
		c.PageLimit = 1000
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 10
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = 90 * time.Second
	}
}

// Client is an outbound HTTP client for the analytics API. It attaches
// authentication, normalizes response shapes, and classifies failures
// into RequestError. It performs no retries itself; the export package
// wraps calls in its retry executor.
type Client struct {
	config ClientConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a new API client with connection pooling.
func NewClient(config ClientConfig) *Client {
	config.applyDefaults()

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		logger: slog.Default().With("component", "api.client"),
	}
}

// PageLimit returns the configured page size.
func (c *Client) PageLimit() int {
	return c.config.PageLimit
}

// ListProjects returns all projects visible to the API key.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/project", nil)
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := decodeInto(body, &projects); err != nil {
		return nil, &DecodeError{Path: "/v1/project", Cause: err}
	}
	return projects, nil
}

// ListEntities returns the experiments or datasets in a project.
func (c *Client) ListEntities(ctx context.Context, kind EntityKind, projectID string) ([]Entity, error) {
	path := fmt.Sprintf("/v1/%s?project_id=%s", kind, url.QueryEscape(projectID))
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var entities []Entity
	if err := decodeInto(body, &entities); err != nil {
		return nil, &DecodeError{Path: path, Cause: err}
	}
	return entities, nil
}

// FetchPage fetches one page of an entity's records. An empty cursor
// requests the first page.
func (c *Client) FetchPage(ctx context.Context, kind EntityKind, entityID, cursor string) (Page, error) {
	path := fmt.Sprintf("/v1/%s/%s/fetch", kind, url.PathEscape(entityID))

	req := map[string]any{"limit": c.config.PageLimit}
	if cursor != "" {
		req["cursor"] = cursor
	}

	body, err := c.do(ctx, http.MethodPost, path, req)
	if err != nil {
		return Page{}, err
	}

	page, err := decodePage(body)
	if err != nil {
		return Page{}, &DecodeError{Path: path, Cause: err}
	}
	return page, nil
}

// do performs a single request and returns the response body. Non-2xx
// responses and transport failures both come back as *RequestError.
func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	fullURL := strings.TrimRight(c.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("sending api request", "method", method, "path", path)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RequestError{Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}
