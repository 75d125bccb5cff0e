// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"os"

	"github.com/BaSui01/routecodex/oauth"
	"golang.org/x/oauth2"
)

// OAuthConfigFor resolves the well-known OAuth endpoint for a provider
// family that authenticates via OAuth (Qwen, iFlow, Gemini-CLI,
// Antigravity). Client credentials and redirect URL are read from
// environment variables so no secret is ever hardcoded; OAUTH_CALLBACK_HOST
// overrides the loopback host the auth-code flow binds to (§6). Exported
// so the refresh daemon and tokenctl CLI can build the same oauth2.Config
// the factory uses without duplicating the endpoint table.
func OAuthConfigFor(providerType string) (*oauth2.Config, bool) {
	switch providerType {
	case "qwen":
		return oauth.NewConfig(oauth.Endpoint{
			AuthURL:       "https://chat.qwen.ai/oauth/authorize",
			TokenURL:      "https://chat.qwen.ai/oauth/token",
			DeviceAuthURL: "https://chat.qwen.ai/oauth/device/code",
		}, envOr("QWEN_OAUTH_CLIENT_ID", ""), os.Getenv("QWEN_OAUTH_CLIENT_SECRET"), callbackURL(), []string{"openid", "profile"}), true
	case "iflow":
		return oauth.NewConfig(oauth.Endpoint{
			AuthURL:       "https://iflow.cn/oauth/authorize",
			TokenURL:      "https://iflow.cn/oauth/token",
			DeviceAuthURL: "https://iflow.cn" + iflowDeviceCodePaths[0],
		}, envOr("IFLOW_OAUTH_CLIENT_ID", ""), os.Getenv("IFLOW_OAUTH_CLIENT_SECRET"), callbackURL(), []string{"openid", "profile"}), true
	case "geminicli", "antigravity":
		return oauth.NewConfig(oauth.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		}, envOr("GEMINI_CLI_OAUTH_CLIENT_ID", ""), os.Getenv("GEMINI_CLI_OAUTH_CLIENT_SECRET"), callbackURL(),
			[]string{"https://www.googleapis.com/auth/cloud-platform"}), true
	default:
		return nil, false
	}
}

func callbackURL() string {
	host := os.Getenv("OAUTH_CALLBACK_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	return "http://" + host + ":0/callback"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
