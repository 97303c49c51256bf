// Package apiclient talks to a running memories proxy over HTTP. The CLI
// commands use it; failures come back as *memories.Error so callers see the
// same type, code and message the proxy returned.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/memories-sh/memories-go/api"
	"github.com/memories-sh/memories-go/pkg/memories"
)

// Client calls the proxy's REST endpoints.
type Client struct {
	target     *url.URL
	httpClient *http.Client
}

// New creates a Client for the proxy at target (e.g. "http://localhost:8000").
// A nil httpClient gets one with a timeout slightly above the proxy's own
// upstream timeout.
func New(target string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(target, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy target URL %q: scheme and host are required", target)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: memories.Timeout + 5*time.Second}
	}

	return &Client{target: u, httpClient: httpClient}, nil
}

// Target returns the proxy URL.
func (c *Client) Target() string {
	return c.target.String()
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddMemory calls POST /memories/add.
func (c *Client) AddMemory(ctx context.Context, req api.AddMemoryRequest) (*api.AddMemoryResponse, error) {
	var out api.AddMemoryResponse
	if err := c.do(ctx, http.MethodPost, "/memories/add", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchMemories calls GET /memories/search.
func (c *Client) SearchMemories(ctx context.Context, in memories.SearchInput) (*api.SearchResponse, error) {
	q := url.Values{}
	q.Set("q", in.Query)
	q.Set("limit", strconv.Itoa(in.Limit))
	setString(q, "type", string(in.Type))
	setString(q, "layer", string(in.Layer))
	setScope(q, in.Scope)

	var out api.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/memories/search", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContext calls GET /context.
func (c *Client) GetContext(ctx context.Context, in memories.ContextInput) (*api.ContextResponse, error) {
	q := url.Values{}
	q.Set("q", in.Query)
	setString(q, "mode", string(in.Mode))
	setString(q, "strategy", string(in.Strategy))
	q.Set("limit", strconv.Itoa(in.Limit))
	q.Set("graphDepth", strconv.Itoa(in.GraphDepth))
	q.Set("graphLimit", strconv.Itoa(in.GraphLimit))
	setScope(q, in.Scope)

	var out api.ContextResponse
	if err := c.do(ctx, http.MethodGet, "/context", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	u := *c.target
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to memories proxy at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		OK    *bool           `json:"ok"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.OK == nil {
		return fmt.Errorf("unexpected response from memories proxy (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	if !*envelope.OK {
		e := &memories.Error{Status: resp.StatusCode, Raw: envelope.Error}
		_ = json.Unmarshal(envelope.Error, &e.Body)
		return e
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func setString(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setScope(q url.Values, s memories.Scope) {
	setString(q, "tenantId", s.TenantID)
	setString(q, "userId", s.UserID)
	setString(q, "projectId", s.ProjectID)
}
