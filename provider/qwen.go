// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"context"
	"strings"

	"github.com/BaSui01/routecodex/internal/rcerrors"
	"github.com/BaSui01/routecodex/oauth"
	"github.com/BaSui01/routecodex/tokenstore"
	"golang.org/x/oauth2"
)

// qwenAllowedFields is Qwen's documented payload key allow-list (§4.4).
var qwenAllowedFields = map[string]bool{
	"model": true, "messages": true, "input": true, "parameters": true,
	"tools": true, "stream": true, "response_format": true, "user": true, "metadata": true,
}

// NewQwen builds a Qwen provider. Qwen authenticates via OAuth device
// flow with PKCE (apiKey wins over access_token when both are present,
// handled by auth.OAuthProvider's override path), restricts the wire
// payload to an allow-list of top-level fields, and resolves its base
// URL from the token's resource_url when present.
func NewQwen(opts Options, tokenFile string) *BaseProvider {
	codec := &openAICompatCodec{AllowFields: qwenAllowedFields}
	bp := NewBaseProvider(opts, codec, "/v1/chat/completions")
	bp.BuildExtraHeaders = func(ctx context.Context) map[string]string {
		return map[string]string{
			"X-Goog-Api-Client": "gl-node/22.17.0",
			"Client-Metadata":   "ideType=IDE_UNSPECIFIED,platform=PLATFORM_UNSPECIFIED,pluginType=GEMINI",
		}
	}
	bp.ResolveBaseURL = func(ctx context.Context) (string, error) {
		payload, _, err := tokenstore.LoadPayload(tokenFile)
		if err != nil || payload.ResourceURL == "" {
			return opts.Target.BaseURL, nil
		}
		return payload.ResourceURL, nil
	}
	return bp
}

// qwenIsInvalidToken recognizes Qwen's invalid/expired OAuth token signal
// (HTTP 401, or the vendor's literal "invalid_token" body marker).
func qwenIsInvalidToken(err error) bool {
	rcErr, ok := rcerrors.As(err)
	if !ok {
		return false
	}
	return rcErr.HTTPStatus == 401 || strings.Contains(rcErr.Details.Upstream, "invalid_token")
}

// QwenRefreshOnInvalidToken wraps oauth.Manager.HandleUpstreamInvalidOAuthToken
// for wiring into BaseProvider.RefreshOnInvalidToken: on a recognized
// invalid-token signal it refreshes once and signals a single retry.
func QwenRefreshOnInvalidToken(mgr *oauth.Manager, tokenFile string, cfg *oauth2.Config) func(ctx context.Context, callErr error) (bool, error) {
	return func(ctx context.Context, callErr error) (bool, error) {
		return mgr.HandleUpstreamInvalidOAuthToken(ctx, tokenFile, cfg, callErr, qwenIsInvalidToken)
	}
}
