// Package remote calls a deployed generation endpoint over HTTP.
//
// The endpoint receives {"jobId", "adminNotes", "photoUrls"} and answers
// {"ok", "generatedText"}. Calls can run for minutes, so the client carries
// no timeout of its own; the caller's context bounds each call.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/generate"
)

var _ generate.Generator = (*Client)(nil)

// Client is a Generator backed by an HTTP endpoint.
type Client struct {
	url   string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }

// WithToken sets a bearer token.
func WithToken(t string) Option { return func(cl *Client) { cl.token = t } }

// New creates a remote generator client.
func New(url string, opts ...Option) *Client {
	c := &Client{url: url, http: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate posts the request and decodes the result.
func (c *Client) Generate(ctx context.Context, req generate.Request) (*generate.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("remote: marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote: request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: remote: %w", fieldwork.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best-effort error body
		return nil, fmt.Errorf("%w: remote: status %d: %s", fieldwork.ErrGenerationFailed, resp.StatusCode, bytes.TrimSpace(msg))
	}
	var res generate.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: remote: decode: %w", fieldwork.ErrGenerationFailed, err)
	}
	return &res, nil
}
