// Package client talks to a running daemon over its HTTP API. The CLI is its
// only consumer; every method maps to one endpoint and decodes the JSON
// response shapes the server emits.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"modelkeep/internal/api"
	"modelkeep/internal/catalog"
)

// ErrDaemonUnavailable wraps connection failures so the CLI can suggest
// starting the daemon instead of dumping a raw dial error.
var ErrDaemonUnavailable = errors.New("daemon is not reachable")

// Client is a thin HTTP wrapper around the daemon API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient substitutes the request/response client, mainly for tests.
// The event-stream client is unaffected.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New builds a client for the daemon bound at addr (host:port or a full
// http:// URL).
func New(addr string, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(addr), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// http.Client.Timeout bounds the whole exchange including body
		// reads, which would cut the SSE stream mid-follow. The stream
		// client carries per-phase timeouts instead and no overall one.
		streamClient: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchQuery mirrors the /api/item query parameters. A non-zero ID bypasses
// search and fetches that single entry.
type SearchQuery struct {
	ID            int64
	Text          string
	Page          int64
	Count         int64
	TagOnly       bool
	DuplicateOnly bool
}

// Search runs a catalog search.
func (c *Client) Search(ctx context.Context, query SearchQuery) (*api.SearchResponse, error) {
	values := url.Values{}
	if query.ID > 0 {
		values.Set("id", strconv.FormatInt(query.ID, 10))
	}
	if query.Text != "" {
		values.Set("search", query.Text)
	}
	if query.Page > 0 {
		values.Set("page", strconv.FormatInt(query.Page, 10))
	}
	if query.Count > 0 {
		values.Set("count", strconv.FormatInt(query.Count, 10))
	}
	if query.TagOnly {
		values.Set("tag_only", "true")
	}
	if query.DuplicateOnly {
		values.Set("duplicate_only", "true")
	}

	var res api.SearchResponse
	if err := c.get(ctx, "/api/item", values, &res); err != nil {
		return nil, err
	}
	if res.Err != "" {
		return nil, errors.New(res.Err)
	}
	return &res, nil
}

// Status fetches daemon health.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var res api.StatusResponse
	if err := c.get(ctx, "/api/status", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Jobs lists background jobs newest first.
func (c *Client) Jobs(ctx context.Context) ([]api.JobInfo, error) {
	var res api.JobListResponse
	if err := c.get(ctx, "/api/job", nil, &res); err != nil {
		return nil, err
	}
	return res.Jobs, nil
}

// Tags lists every tag with its use count.
func (c *Client) Tags(ctx context.Context) ([]catalog.TagCount, error) {
	var res api.TagListResponse
	if err := c.get(ctx, "/api/tag", nil, &res); err != nil {
		return nil, err
	}
	return res.Tags, nil
}

// StartCheck triggers the mark phase. The returned message is the daemon's
// acknowledgement.
func (c *Client) StartCheck(ctx context.Context) (string, error) {
	return c.postCommon(ctx, "/api/maintenance/check")
}

// StartClean triggers the sweep phase.
func (c *Client) StartClean(ctx context.Context) (string, error) {
	return c.postCommon(ctx, "/api/maintenance/clean")
}

// Remove deletes catalog entries and trashes their files.
func (c *Client) Remove(ctx context.Context, ids []int64) error {
	values := url.Values{}
	for _, id := range ids {
		values.Add("id", strconv.FormatInt(id, 10))
	}
	var res api.CommonResponse
	if err := c.get(ctx, "/api/item/delete", values, &res); err != nil {
		return err
	}
	if res.Err != "" {
		return errors.New(res.Err)
	}
	return nil
}

// DownloadRequest mirrors the /api/item/civitai_download parameters.
type DownloadRequest struct {
	URL       string
	Name      string
	Hash      string
	Dest      string
	ModelType string
}

// Download asks the daemon to fetch a file in the background.
func (c *Client) Download(ctx context.Context, req DownloadRequest) (string, error) {
	values := url.Values{}
	values.Set("url", req.URL)
	values.Set("name", req.Name)
	if req.Hash != "" {
		values.Set("blake3", req.Hash)
	}
	if req.Dest != "" {
		values.Set("dest", req.Dest)
	}
	if req.ModelType != "" {
		values.Set("model_type", req.ModelType)
	}

	var res api.CommonResponse
	if err := c.get(ctx, "/api/item/civitai_download", values, &res); err != nil {
		return "", err
	}
	if res.Err != "" {
		return "", errors.New(res.Err)
	}
	return res.Msg, nil
}

// SavedLocation asks where a file of the given category should land.
func (c *Client) SavedLocation(ctx context.Context, modelType, hash string) (*api.SavedLocationResponse, error) {
	values := url.Values{}
	if modelType != "" {
		values.Set("model_type", modelType)
	}
	if hash != "" {
		values.Set("blake3", hash)
	}
	var res api.SavedLocationResponse
	if err := c.get(ctx, "/api/item/saved_location", values, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateItem replaces an entry's tags and note.
func (c *Client) UpdateItem(ctx context.Context, update api.ItemUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/item/update", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var res api.CommonResponse
	if err := c.do(req, &res); err != nil {
		return err
	}
	if res.Err != "" {
		return errors.New(res.Err)
	}
	return nil
}

// FollowEvents subscribes to the daemon's SSE stream and invokes fn for every
// event until ctx is cancelled or the stream closes. Ping comments are
// skipped.
func (c *Client) FollowEvents(ctx context.Context, fn func(api.EventMessage)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream returned %s", resp.Status)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event stream: %w", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg api.EventMessage
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			continue
		}
		fn(msg)
	}
}

func (c *Client) postCommon(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	var res api.CommonResponse
	if err := c.do(req, &res); err != nil {
		return "", err
	}
	if res.Err != "" {
		return "", errors.New(res.Err)
	}
	return res.Msg, nil
}

func (c *Client) get(ctx context.Context, path string, values url.Values, out any) error {
	target := c.baseURL + path
	if len(values) > 0 {
		target += "?" + values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s returned %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
