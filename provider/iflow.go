// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/BaSui01/routecodex/httpclient"
	"github.com/BaSui01/routecodex/internal/rcerrors"
	"github.com/BaSui01/routecodex/oauth"
	"golang.org/x/oauth2"
)

// iflowHosts are the candidate hosts for iFlow's chat endpoint:
// api.iflow.cn is tried first, falling back to iflow.cn on a 404 or
// non-JSON response (httpclient's base-URL fallback). The OAuth
// device-code endpoint (OAuthConfigFor) is fixed to iflow.cn and the
// first of iflowDeviceCodePaths; it has no host or path fallback.
var iflowHosts = []string{"https://api.iflow.cn", "https://iflow.cn"}

// NewIFlow builds an iFlow provider. iFlow exposes its chat endpoint
// across two candidate hosts that httpclient.Client already knows how to
// fall back across. Authentication is whatever opts.AuthProv does; an
// OAuth re-acquisition runs a single flow and does not fall back from
// auth-code to device-code.
func NewIFlow(opts Options) *BaseProvider {
	target := opts.Target
	if target.BaseURL == "" {
		target.BaseURL = iflowHosts[0]
	}
	opts.Target = target
	codec := &openAICompatCodec{}
	bp := NewBaseProvider(opts, codec, "/v1/chat/completions")
	bp.HTTP = httpclient.New(httpclient.Config{
		BaseURLs: iflowCandidates(target.BaseURL),
		Timeout:  resolveTimeout(target),
		Provider: "iflow",
	}, opts.Logger)
	return bp
}

func iflowCandidates(configured string) []string {
	for _, h := range iflowHosts {
		if strings.EqualFold(configured, h) {
			out := make([]string, 0, len(iflowHosts))
			out = append(out, configured)
			for _, other := range iflowHosts {
				if !strings.EqualFold(other, configured) {
					out = append(out, other)
				}
			}
			return out
		}
	}
	return append([]string{configured}, iflowHosts...)
}

// iflowDeviceCodePaths are the two observed variants of iFlow's
// device-code endpoint path.
var iflowDeviceCodePaths = []string{"/oauth/device_code", "/oauth/device/code"}

// IFlowAttachAPIKey fetches the API key associated with an OAuth access
// token via iFlow's getUserInfo endpoint, per §4.4's "apiKey may be
// attached by calling getUserInfo?accessToken=…".
func IFlowAttachAPIKey(ctx context.Context, client *httpclient.Client, accessToken string) (string, error) {
	resp, err := client.Do(ctx, httpclient.Request{
		Method: "GET",
		Path:   "/api/user/getUserInfo?accessToken=" + url.QueryEscape(accessToken),
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", rcerrors.FromStatus(resp.StatusCode, "getUserInfo failed", "iflow")
	}
	var parsed struct {
		Data struct {
			APIKey string `json:"apiKey"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Data.APIKey, nil
}

func iflowIsInvalidToken(err error) bool {
	rcErr, ok := rcerrors.As(err)
	return ok && rcErr.HTTPStatus == 401
}

// IFlowRefreshOnInvalidToken mirrors QwenRefreshOnInvalidToken for iFlow's
// OAuth flow.
func IFlowRefreshOnInvalidToken(mgr *oauth.Manager, tokenFile string, cfg *oauth2.Config) func(ctx context.Context, callErr error) (bool, error) {
	return func(ctx context.Context, callErr error) (bool, error) {
		return mgr.HandleUpstreamInvalidOAuthToken(ctx, tokenFile, cfg, callErr, iflowIsInvalidToken)
	}
}
