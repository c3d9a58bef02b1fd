// Package client calls the profiler RPC surface of a running yuca service.
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

	"github.com/yuca-profiler/yuca/internal/domain"
)

const defaultTimeout = 30 * time.Second

var ErrRejected = errors.New("request rejected")

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New accepts either a base URL or a bare host:port.
func New(addr string, opts ...Option) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	c := &Client{
		baseURL:    strings.TrimRight(addr, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ domain.ProfilerService = (*Client)(nil)

type envelope struct {
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", path, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s: HTTP %d: decode response: %w", path, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := env.Message
		for field, e := range env.Errors {
			msg += fmt.Sprintf("; %s: %s", field, e)
		}
		return fmt.Errorf("%s: HTTP %d: %s", path, resp.StatusCode, msg)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", path, err)
	}
	return nil
}

func (c *Client) Start(ctx context.Context, req domain.StartRequest) (*domain.MessageResponse, error) {
	var resp domain.MessageResponse
	if err := c.post(ctx, "/yuca/start", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Stop(ctx context.Context, req domain.StopRequest) (*domain.MessageResponse, error) {
	var resp domain.MessageResponse
	if err := c.post(ctx, "/yuca/stop", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Read(ctx context.Context, req domain.ReadRequest) (*domain.ReadResponse, error) {
	var resp domain.ReadResponse
	if err := c.post(ctx, "/yuca/read", req, &resp); err != nil {
		return nil, err
	}
	if resp.Report == nil {
		resp.Report = &domain.Report{}
	}
	return &resp, nil
}

func (c *Client) Dump(ctx context.Context, req domain.DumpRequest) (*domain.DumpResponse, error) {
	var resp domain.DumpResponse
	if err := c.post(ctx, "/yuca/dump", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Purge(ctx context.Context) error {
	return c.post(ctx, "/yuca/purge", nil, nil)
}
