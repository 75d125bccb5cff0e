// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/BaSui01/routecodex/auth"
	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/httpclient"
	"github.com/BaSui01/routecodex/internal/circuitbreaker"
	"github.com/BaSui01/routecodex/internal/rcerrors"
	"github.com/BaSui01/routecodex/pipeline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WireCodec converts between the pipeline's canonical Request/Response and
// one vendor's wire JSON shape. Every per-family adapter supplies one.
type WireCodec interface {
	// EncodeRequest builds the upstream JSON body. model is the
	// pipeline-configured model that must override req.Model on the
	// wire per §4.4 step 1.
	EncodeRequest(req *pipeline.Request, model string, maxTokens int) ([]byte, error)

	// DecodeResponse parses an upstream 2xx body into the canonical
	// Response, restoring origModel onto it.
	DecodeResponse(body []byte, origModel string) (*pipeline.Response, error)

	// VendorReport inspects a non-2xx body for a known business-error
	// code and returns a human hint, or nil if none is recognized.
	VendorReport(statusCode int, body []byte) *rcerrors.VendorReport
}

// BaseProvider implements the generic SendRequest algorithm (§4.4) on top
// of an httpclient.Client, an auth.Provider and a WireCodec. Per-family
// adapters embed it and only need to supply vendor-specific pieces:
// Codec, EndpointPath, BuildExtraHeaders, RefreshOnInvalidToken and
// ResolveBaseURL.
type BaseProvider struct {
	Info   Info
	Target config.ProviderTarget

	HTTP    *httpclient.Client
	Auth    auth.Provider
	Codec   WireCodec
	Breaker circuitbreaker.CircuitBreaker

	// EndpointPath is the path POSTed to, relative to the configured
	// base URL (e.g. "/chat/completions", "/v1/messages").
	EndpointPath string

	// BuildExtraHeaders returns vendor-specific headers layered on top
	// of the base Content-Type and auth headers. May be nil.
	BuildExtraHeaders func(ctx context.Context) map[string]string

	// RefreshOnInvalidToken implements §4.5's
	// handleUpstreamInvalidOAuthToken: given the classified call error it
	// recognizes a provider-specific invalid/expired-token signal,
	// performs at most one refresh, and reports whether the caller should
	// retry the request once with fresh headers. May be nil for
	// non-OAuth providers, meaning the retry path never triggers.
	RefreshOnInvalidToken func(ctx context.Context, callErr error) (bool, error)

	// ResolveBaseURL overrides the configured base URL per call (Qwen's
	// token.resource_url, which can change across refreshes). When nil,
	// the base URL fixed at construction time is used.
	ResolveBaseURL func(ctx context.Context) (string, error)

	snapshot *snapshotWriter
	logger   *zap.Logger
}

// NewBaseProvider wires up the shared machinery. codec and endpointPath
// are vendor-specific; everything else is read off opts.
func NewBaseProvider(opts Options, codec WireCodec, endpointPath string) *BaseProvider {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bp := &BaseProvider{
		Info:         opts.Info,
		Target:       opts.Target,
		Auth:         opts.AuthProv,
		Codec:        codec,
		Breaker:      opts.Breaker,
		EndpointPath: endpointPath,
		snapshot:     newSnapshotWriter(opts.SnapshotDir, logger),
		logger:       logger,
	}
	baseURLs := []string{opts.Target.BaseURL}
	bp.HTTP = httpclient.New(httpclient.Config{
		BaseURLs:   baseURLs,
		Timeout:    resolveTimeout(opts.Target),
		MaxRetries: opts.Target.MaxRetries,
		Provider:   opts.Info.Vendor,
	}, logger)
	return bp
}

// resolveTimeout applies §4.4 step 4's priority: env override > config >
// hard default.
func resolveTimeout(target config.ProviderTarget) time.Duration {
	if ms := os.Getenv("ROUTECODEX_PROVIDER_TIMEOUT_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			return time.Duration(v) * time.Millisecond
		}
	}
	if target.Timeout > 0 {
		return target.Timeout
	}
	return DefaultTimeout
}

// resolveMaxTokens applies §4.4 step 1's priority: request > config
// override > env default > hard default 8192.
func resolveMaxTokens(req *pipeline.Request, target config.ProviderTarget) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if v, ok := target.Extensions["maxTokens"]; ok {
		if n, ok := toInt(v); ok && n > 0 {
			return n
		}
	}
	if s := os.Getenv("ROUTECODEX_DEFAULT_MAX_TOKENS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxTokens
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Initialize validates the target and, for OAuth auth, ensures a valid
// token is available before the first request.
func (b *BaseProvider) Initialize(ctx context.Context) error {
	if b.Target.BaseURL == "" {
		return rcerrors.New(rcerrors.TypeConfig, "MISSING_BASE_URL", "provider target has no baseUrl").
			WithProvider(rcerrors.ProviderDetails{Vendor: b.Info.Vendor})
	}
	if _, err := b.Auth.Headers(ctx); err != nil {
		return rcerrors.New(rcerrors.TypeAuth, "INIT_AUTH_FAILED", err.Error()).
			WithCause(err).WithProvider(rcerrors.ProviderDetails{Vendor: b.Info.Vendor})
	}
	return nil
}

// CheckHealth GETs /models (or the vendor-equivalent health path) and
// treats 2xx and 404 as healthy per §4.4.
func (b *BaseProvider) CheckHealth(ctx context.Context) bool {
	headers, err := b.Auth.Headers(ctx)
	if err != nil {
		return false
	}
	resp, err := b.HTTP.Do(ctx, httpclient.Request{Method: "GET", Path: "/models", Headers: headers})
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 300 || resp.StatusCode == 404
}

// Cleanup is a no-op for providers with no long-lived resources; it
// exists so adapters that do hold one (e.g. a streaming normalizer) can
// override it.
func (b *BaseProvider) Cleanup() error { return nil }

// SendRequest implements the full §4.4 algorithm: preprocess, headers,
// snapshot, POST (through the circuit breaker and retry policy), error
// classification with a single OAuth-retry, snapshot, return.
func (b *BaseProvider) SendRequest(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	requestID := requestIDFrom(ctx)
	bucket := bucketFrom(req)
	model := b.Target.Extensions["model"]
	modelID := req.Model
	if m, ok := model.(string); ok && m != "" {
		modelID = m
	}
	maxTokens := resolveMaxTokens(req, b.Target)

	wireBody, err := b.Codec.EncodeRequest(req, modelID, maxTokens)
	if err != nil {
		return nil, rcerrors.New(rcerrors.TypeUnknown, "ENCODE_FAILED", err.Error()).WithCause(err)
	}
	b.snapshot.writeRequest(bucket, requestID, json.RawMessage(wireBody))

	resp, err := b.doSend(ctx, wireBody)
	if err != nil && b.RefreshOnInvalidToken != nil {
		if retried, _ := b.RefreshOnInvalidToken(ctx, err); retried {
			resp, err = b.doSend(ctx, wireBody)
		}
	}
	if err != nil {
		b.snapshot.writeError(bucket, requestID, err)
		return nil, err
	}

	parsed, err := b.Codec.DecodeResponse(resp, req.OrigModel)
	if err != nil {
		decErr := rcerrors.New(rcerrors.TypeUnknown, "DECODE_FAILED", err.Error()).WithCause(err)
		b.snapshot.writeError(bucket, requestID, decErr)
		return nil, decErr
	}
	b.snapshot.writeResponse(bucket, requestID, json.RawMessage(resp))
	b.snapshot.writePair(bucket, requestID, json.RawMessage(wireBody), json.RawMessage(resp))
	return parsed, nil
}

// doSend builds headers, issues the POST (through the circuit breaker
// when configured) and classifies any failure into an *rcerrors.Error.
func (b *BaseProvider) doSend(ctx context.Context, wireBody []byte) ([]byte, error) {
	headers, err := b.buildHeaders(ctx)
	if err != nil {
		return nil, err
	}

	call := func() (any, error) {
		httpReq := httpclient.Request{Method: "POST", Path: b.EndpointPath, Body: wireBody, Headers: headers}
		var resp *http.Response
		var err error
		if b.ResolveBaseURL != nil {
			base, resolveErr := b.ResolveBaseURL(ctx)
			if resolveErr != nil {
				return nil, rcerrors.New(rcerrors.TypeAuth, "RESOLVE_BASE_URL_FAILED", resolveErr.Error()).WithCause(resolveErr)
			}
			resp, err = b.HTTP.DoWithBase(ctx, base, httpReq)
		} else {
			resp, err = b.HTTP.Do(ctx, httpReq)
		}
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 400 {
			return nil, b.classifyUpstreamError(resp.StatusCode, body)
		}
		return body, nil
	}

	if b.Breaker == nil {
		result, err := call()
		if err != nil {
			return nil, err
		}
		return result.([]byte), nil
	}
	result, err := b.Breaker.CallWithResult(ctx, call)
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (b *BaseProvider) buildHeaders(ctx context.Context) (map[string]string, error) {
	headers := map[string]string{"Content-Type": "application/json", "Accept": "application/json"}
	for k, v := range b.Target.Headers {
		headers[k] = v
	}
	if b.BuildExtraHeaders != nil {
		for k, v := range b.BuildExtraHeaders(ctx) {
			headers[k] = v
		}
	}
	authHeaders, err := b.Auth.Headers(ctx)
	if err != nil {
		return nil, rcerrors.New(rcerrors.TypeAuth, "AUTH_HEADERS_FAILED", err.Error()).
			WithCause(err).WithProvider(rcerrors.ProviderDetails{Vendor: b.Info.Vendor})
	}
	for k, v := range authHeaders {
		headers[k] = v
	}
	return headers, nil
}

func (b *BaseProvider) classifyUpstreamError(status int, body []byte) error {
	e := rcerrors.FromStatus(status, string(body), b.Info.Vendor)
	if b.Codec != nil {
		if report := b.Codec.VendorReport(status, body); report != nil {
			e = e.WithReport(*report)
		}
	}
	e.Details.Upstream = string(body)
	return e
}

func requestIDFrom(ctx context.Context) string {
	if v := ctx.Value(requestIDKey{}); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return uuid.NewString()
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to ctx for snapshot file naming.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func bucketFrom(req *pipeline.Request) string {
	if req.Metadata != nil {
		if v, ok := req.Metadata["entryEndpoint"]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return req.EntryProtocol
}

