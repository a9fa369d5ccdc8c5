package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const invokePathPrefix = "/api/invoke/"

// DefaultRequestTimeout bounds each invoke round trip unless the
// constructor overrides it. Zero disables the bound entirely and restores
// the wait-forever behavior of older console builds.
const DefaultRequestTimeout = 30 * time.Second

type HTTPPort struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

var _ Port = (*HTTPPort)(nil)

type HTTPOption func(*HTTPPort)

func WithAPIKey(key string) HTTPOption {
	return func(p *HTTPPort) { p.apiKey = key }
}

// WithTimeout sets the per-invoke timeout. d <= 0 disables it.
func WithTimeout(d time.Duration) HTTPOption {
	return func(p *HTTPPort) { p.timeout = d }
}

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPPort) { p.client = c }
}

func NewHTTPPort(baseURL string, opts ...HTTPOption) *HTTPPort {
	p := &HTTPPort{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: DefaultRequestTimeout,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HTTPPort) Invoke(ctx context.Context, operation string, params any) (json.RawMessage, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if params == nil {
		params = struct{}{}
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params for %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+invokePathPrefix+operation, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-Key", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", operation, err)
	}
	if resp.StatusCode != http.StatusOK {
		// Non-envelope failures (auth middleware, unknown route) still
		// carry a {code, message} body when they come from the dev backend.
		var apiErr APIError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return nil, &RejectionError{Operation: operation, Code: apiErr.Code, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("%s returned HTTP %d", operation, resp.StatusCode)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s envelope: %w", operation, err)
	}
	return DecodeEnvelope(operation, &env)
}
