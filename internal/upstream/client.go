// Package upstream provides clients for the external language and speech
// providers. Both speak the OpenAI-compatible HTTP API.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chaisthra/vibetrack/internal/metrics"
	"github.com/chaisthra/vibetrack/internal/model"
)

const maxResponseSize = 1 << 20

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type client struct {
	provider   string
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

func newClient(provider string, cfg Config) client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return client{
		provider:   provider,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// do sends req under the client timeout and returns the response body of a
// 2xx reply. Errors are classified as model.ErrUpstreamTimeout or
// model.ErrUpstream and never carry the response body.
func (c client) do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", model.ErrUpstream, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(ctx, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.fail(ctx, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "error.message").String()
		metrics.UpstreamCall(c.provider, "error")
		return nil, fmt.Errorf("%w: %s returned %s %s", model.ErrUpstream, c.provider, resp.Status, msg)
	}

	metrics.UpstreamCall(c.provider, "ok")
	return body, nil
}

func (c client) fail(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		metrics.UpstreamCall(c.provider, "timeout")
		return fmt.Errorf("%w: %s after %s", model.ErrUpstreamTimeout, c.provider, c.timeout)
	}
	metrics.UpstreamCall(c.provider, "error")
	return fmt.Errorf("%w: %s: %v", model.ErrUpstream, c.provider, err)
}
