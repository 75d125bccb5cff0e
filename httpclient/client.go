// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package httpclient is the single outbound HTTP surface every provider
// adapter is built on: timeout-bounded requests, retry with backoff, and
// ordered base-URL candidates (for providers like iFlow that expose the
// same API on more than one host). It does no SSE parsing; response
// bodies are handed back unread.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/routecodex/internal/retry"
	"github.com/BaSui01/routecodex/internal/rcerrors"
	"github.com/BaSui01/routecodex/internal/tlsutil"
	"go.uber.org/zap"
)

// Config configures a Client.
type Config struct {
	// BaseURLs is the ordered list of candidate hosts. The first entry is
	// tried first; ShouldFallback decides whether a failed attempt should
	// fall through to the next candidate.
	BaseURLs []string

	Timeout    time.Duration
	MaxRetries int
	Provider   string

	// RetryPolicy overrides the retry/backoff curve entirely. When nil,
	// retry.DefaultPolicy() is used with MaxRetries substituted in.
	RetryPolicy *retry.Policy

	// ShouldFallback decides whether a response/error on one base URL
	// candidate should trigger a retry against the next one. Defaults to
	// falling back on a 404 status or a non-2xx/non-JSON content type,
	// matching iFlow's documented host-fallback behavior.
	ShouldFallback func(resp *http.Response, err error) bool
}

// Client wraps *http.Client with retry and base-URL fallback.
type Client struct {
	cfg     Config
	http    *http.Client
	retryer *retry.Retryer
	logger  *zap.Logger
}

// New builds a Client. A nil logger is replaced with a no-op logger.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.BaseURLs) == 0 {
		cfg.BaseURLs = []string{""}
	}
	if cfg.ShouldFallback == nil {
		cfg.ShouldFallback = defaultShouldFallback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := cfg.RetryPolicy
	if policy == nil {
		policy = retry.DefaultPolicy()
		if cfg.MaxRetries > 0 {
			policy.MaxRetries = cfg.MaxRetries
		}
	}
	return &Client{
		cfg:     cfg,
		http:    tlsutil.SecureHTTPClient(cfg.Timeout),
		retryer: retry.New(policy, logger),
		logger:  logger,
	}
}

func defaultShouldFallback(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	ct := resp.Header.Get("Content-Type")
	return resp.StatusCode >= 400 && !strings.Contains(ct, "json")
}

// Request describes one outbound call, relative to each base-URL candidate.
type Request struct {
	Method  string
	Path    string
	Body    []byte
	Headers map[string]string
}

// Do issues req against the configured base URLs in order, retrying each
// candidate per the retry policy and falling through to the next
// candidate when ShouldFallback reports true. The caller owns closing the
// returned response body.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	return c.doAgainst(ctx, c.cfg.BaseURLs, req)
}

// DoWithBase issues req against a single caller-supplied base URL instead
// of the configured candidate list, while still applying the client's
// retry policy. Used by providers whose effective base URL is derived at
// request time (e.g. Qwen's token-carried resource_url override).
func (c *Client) DoWithBase(ctx context.Context, base string, req Request) (*http.Response, error) {
	return c.doAgainst(ctx, []string{base}, req)
}

func (c *Client) doAgainst(ctx context.Context, baseURLs []string, req Request) (*http.Response, error) {
	var lastErr error
	for i, base := range baseURLs {
		resp, err := c.doWithRetry(ctx, base, req)
		if err == nil && !c.cfg.ShouldFallback(resp, nil) {
			return resp, nil
		}
		if err != nil && !c.cfg.ShouldFallback(nil, err) {
			return nil, err
		}
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("httpclient: candidate %s rejected response", base)
		}
		if i < len(baseURLs)-1 {
			c.logger.Debug("falling back to next base URL candidate",
				zap.String("provider", c.cfg.Provider), zap.String("from", base))
		}
	}
	return nil, classifyError(lastErr, c.cfg.Provider)
}

func (c *Client) doWithRetry(ctx context.Context, base string, req Request) (*http.Response, error) {
	var resp *http.Response
	err := c.retryer.Do(ctx, isRetryableHTTPErr, func() error {
		httpReq, buildErr := c.build(ctx, base, req)
		if buildErr != nil {
			return buildErr
		}
		r, doErr := c.http.Do(httpReq)
		if doErr != nil {
			return doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == 429 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			r.Body.Close()
			return rcerrors.FromStatus(r.StatusCode, string(body), c.cfg.Provider)
		}
		resp = r
		return nil
	})
	return resp, err
}

func (c *Client) build(ctx context.Context, base string, req Request) (*http.Request, error) {
	url := strings.TrimRight(base, "/") + req.Path
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func isRetryableHTTPErr(err error) bool {
	if e, ok := rcerrors.As(err); ok {
		return e.Retryable
	}
	return true
}

func classifyError(err error, provider string) error {
	if err == nil {
		return nil
	}
	if _, ok := rcerrors.As(err); ok {
		return err
	}
	if isNetworkRefusal(err) {
		return rcerrors.Sandbox(provider, err)
	}
	return rcerrors.New(rcerrors.TypeUnknown, "HTTP_CLIENT", err.Error()).WithCause(err).WithProvider(rcerrors.ProviderDetails{Vendor: provider})
}

func isNetworkRefusal(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "network is unreachable")
}
