// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/BaSui01/routecodex/auth"
	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/internal/circuitbreaker"
	"github.com/BaSui01/routecodex/oauth"
	"go.uber.org/zap"
)

// Selector identifies which adapter constructor to use. providerType
// names the vendor family; authType and moduleType disambiguate within
// it (e.g. geminicli vs antigravity share a moduleType of "cloudcode"
// but differ in requestId prefix).
type Selector struct {
	ProviderType string
	AuthType     string // apikey | oauth | token-file
	ModuleType   string
}

// instanceKey is the deterministic cache key from §5's
// "Provider-instance cache in factory" shared-resource policy:
// (providerType, baseUrl, authType, authSignature, runtimeKey).
type instanceKey struct {
	providerType   string
	baseURL        string
	authType       string
	authSignature  string
	runtimeKey     string
}

func (k instanceKey) hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", k.providerType, k.baseURL, k.authType, k.authSignature, k.runtimeKey)
	return hex.EncodeToString(h.Sum(nil))
}

// Factory builds and caches Provider instances so repeated pipeline
// lookups for the same (providerType, baseUrl, authType, authSignature,
// runtimeKey) tuple reuse one instance instead of re-initializing auth
// and HTTP clients on every request.
type Factory struct {
	mu        sync.Mutex
	instances map[string]Provider
	oauthMgr  *oauth.Manager
	logger    *zap.Logger
}

// NewFactory builds a Factory. A nil logger is replaced with a no-op one.
func NewFactory(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		instances: make(map[string]Provider),
		oauthMgr:  oauth.NewManager(logger),
		logger:    logger,
	}
}

// BuildParams bundles everything a factory call needs beyond the
// Selector and config.ProviderTarget: a runtime key distinguishing
// otherwise-identical targets (e.g. a per-request override key), the
// token file path, and the Gemini-CLI/Antigravity alias, session and
// project. The oauth2.Config for OAuth targets is not passed in; the
// factory resolves it with OAuthConfigFor.
type BuildParams struct {
	Info       Info
	Target     config.ProviderTarget
	RuntimeKey string
	TokenFile  string
	AliasID    string
	SessionID  string
	ProjectID  func() string
}

// GetOrCreate returns a cached Provider for the given selector/params, or
// builds, initializes and caches a new one; the bool reports whether the
// instance was newly built. An instance whose Initialize fails is not
// cached.
func (f *Factory) GetOrCreate(ctx context.Context, sel Selector, params BuildParams) (Provider, bool, error) {
	authSig := params.Target.Auth.APIKey
	if authSig == "" {
		authSig = params.TokenFile
	}
	key := instanceKey{
		providerType:  sel.ProviderType,
		baseURL:       params.Target.BaseURL,
		authType:      sel.AuthType,
		authSignature: authSig,
		runtimeKey:    params.RuntimeKey,
	}.hash()

	f.mu.Lock()
	if existing, ok := f.instances[key]; ok {
		f.mu.Unlock()
		return existing, false, nil
	}
	f.mu.Unlock()

	inst, err := f.build(sel, params)
	if err != nil {
		return nil, false, err
	}
	if err := inst.Initialize(ctx); err != nil {
		return nil, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.instances[key]; ok {
		// Lost a race with a concurrent builder; drop ours and reuse
		// theirs, matching the pipeline cache's own double-checked policy.
		inst.Cleanup()
		return existing, false, nil
	}
	f.instances[key] = inst
	return inst, true, nil
}

func (f *Factory) build(sel Selector, params BuildParams) (Provider, error) {
	authProv, err := f.buildAuth(sel, params)
	if err != nil {
		return nil, err
	}
	opts := Options{
		Info:     params.Info,
		Target:   params.Target,
		AuthProv: authProv,
		Breaker:  circuitbreaker.New(nil, f.logger),
		Logger:   f.logger,
	}

	switch sel.ProviderType {
	case "glm":
		return NewGLM(opts), nil
	case "qwen":
		return NewQwen(opts, params.TokenFile), nil
	case "iflow":
		return NewIFlow(opts), nil
	case "deepseek":
		return NewDeepSeek(opts), nil
	case "openai":
		return NewOpenAI(opts), nil
	case "lmstudio":
		return NewLMStudio(opts), nil
	case "gemini":
		return NewGemini(opts, params.Info.ModelID), nil
	case "geminicli":
		return NewGeminiCLI(opts, params.AliasID, params.SessionID, false, params.ProjectID), nil
	case "antigravity":
		return NewGeminiCLI(opts, params.AliasID, params.SessionID, true, params.ProjectID), nil
	default:
		return nil, fmt.Errorf("provider: unknown provider type %q", sel.ProviderType)
	}
}

func (f *Factory) buildAuth(sel Selector, params BuildParams) (auth.Provider, error) {
	switch sel.AuthType {
	case "apikey":
		return &auth.APIKeyProvider{APIKey: params.Target.Auth.APIKey}, nil
	case "token-file":
		return &auth.TokenFileProvider{FilePath: params.Target.Auth.TokenFile}, nil
	case "oauth":
		cfg, ok := OAuthConfigFor(sel.ProviderType)
		if !ok {
			return nil, fmt.Errorf("provider: no oauth endpoint configured for %q", sel.ProviderType)
		}
		return &auth.OAuthProvider{
			FilePath: params.Target.Auth.TokenFile,
			Config:   cfg,
			Manager:  f.oauthMgr,
			Options:  oauth.EnsureOptions{MaxRefreshRetries: 3},
		}, nil
	default:
		return nil, fmt.Errorf("provider: unknown auth type %q", sel.AuthType)
	}
}

// Shutdown releases every cached instance. Called once at process
// shutdown by Dispatcher.Shutdown; the pipeline cache and load-balancer
// indices are not released with it.
func (f *Factory) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, inst := range f.instances {
		inst.Cleanup()
		delete(f.instances, key)
	}
}
