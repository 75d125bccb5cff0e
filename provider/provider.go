// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package provider implements the pipeline's third stage: authentication,
// outbound HTTP, timeout, snapshot writing and post-processing against one
// upstream vendor. BaseProvider carries the generic SendRequest algorithm;
// per-family files layer vendor quirks on top of it.
package provider

import (
	"context"
	"time"

	"github.com/BaSui01/routecodex/auth"
	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/internal/circuitbreaker"
	"github.com/BaSui01/routecodex/pipeline"
	"go.uber.org/zap"
)

// Provider is the generic per-vendor contract every adapter implements.
type Provider interface {
	// Initialize validates configuration and checks that the auth
	// provider can produce headers (the HTTP client is already built by
	// the constructor). For OAuth targets that check ensures a valid
	// token exists, acquiring one interactively if necessary.
	Initialize(ctx context.Context) error

	// SendRequest executes one non-streaming round trip. Model is
	// mandatory; the pipeline-configured model overrides req.Model on
	// the wire, and req.OrigModel is restored onto the response.
	SendRequest(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error)

	// CheckHealth reports whether the upstream is reachable with the
	// configured credentials.
	CheckHealth(ctx context.Context) bool

	// Cleanup drops auth context and any in-flight resources. Safe to
	// call multiple times.
	Cleanup() error
}

// Info identifies one provider instance for snapshotting, metrics and
// the factory's instance cache.
type Info struct {
	ProviderID string
	ModelID    string
	KeyID      string
	Vendor     string // glm | qwen | iflow | deepseek | openai | lmstudio | gemini | geminicli | antigravity | lmstudio
}

// Options bundles the construction-time dependencies every adapter needs
// beyond config.ProviderTarget itself.
type Options struct {
	Info        Info
	Target      config.ProviderTarget
	ModelMax    int
	AuthProv    auth.Provider
	Breaker     circuitbreaker.CircuitBreaker
	SnapshotDir string // defaults to ~/.routecodex/codex-samples
	Logger      *zap.Logger
}

// DefaultMaxTokens is the hard fallback for §4.4 step 1's max_tokens
// resolution chain when no request, config or environment value applies.
const DefaultMaxTokens = 8192

// DefaultTimeout is the hard fallback for the provider HTTP timeout when
// ROUTECODEX_PROVIDER_TIMEOUT_MS and the config/profile overrides are all
// absent.
const DefaultTimeout = 60 * time.Second
