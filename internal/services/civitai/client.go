package civitai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"modelkeep/internal/config"
)

const (
	defaultBaseURL     = "https://civitai.com"
	defaultHTTPTimeout = 60 * time.Second
	userAgent          = "modelkeep/0.1.0"
)

// Client wraps the Civitai HTTP API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the Civitai client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs a Civitai API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// NewFromConfig constructs a client from the [civitai] config section.
func NewFromConfig(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.Civitai.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return NewClient(
		cfg.Civitai.APIKey,
		WithBaseURL(cfg.Civitai.BaseURL),
		WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// VersionByHash fetches the model version owning a file with the given
// BLAKE3 digest. The raw body is returned alongside the parsed payload so
// callers can persist it verbatim as a sidecar.
func (c *Client) VersionByHash(ctx context.Context, hash string) (*Version, []byte, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if hash == "" {
		return nil, nil, fmt.Errorf("civitai version by hash: hash required")
	}
	return getVersion(ctx, c, "/api/v1/model-versions/by-hash/"+url.PathEscape(hash))
}

// VersionByID fetches one model version by its identifier.
func (c *Client) VersionByID(ctx context.Context, id int64) (*Version, []byte, error) {
	return getVersion(ctx, c, "/api/v1/model-versions/"+strconv.FormatInt(id, 10))
}

func getVersion(ctx context.Context, c *Client, path string) (*Version, []byte, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	var version Version
	if err := json.Unmarshal(body, &version); err != nil {
		return nil, nil, fmt.Errorf("civitai: decode version: %w", err)
	}
	return &version, body, nil
}

// ModelByID fetches the parent model payload. The raw body is returned for
// sidecar persistence.
func (c *Client) ModelByID(ctx context.Context, id int64) (*Model, []byte, error) {
	body, err := c.get(ctx, "/api/v1/models/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, nil, err
	}
	var model Model
	if err := json.Unmarshal(body, &model); err != nil {
		return nil, nil, fmt.Errorf("civitai: decode model: %w", err)
	}
	return &model, body, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("civitai: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("civitai: request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("civitai: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("civitai: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("civitai: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
