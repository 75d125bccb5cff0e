// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package daemon

import (
	"testing"

	"github.com/BaSui01/routecodex/classifier"
	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testConfig() *config.Config {
	return &config.Config{
		Pool: router.Pool{
			"default": []router.Target{
				{ProviderID: "qwen", ModelID: "qwen-max", KeyID: "alias-1"},
				{ProviderID: "deepseek", ModelID: "deepseek-chat", KeyID: "static"},
				{ProviderID: "geminicli", ModelID: "gemini-2.0", KeyID: "alias-2"},
			},
		},
		Pipelines: map[string]config.PipelineTargetConfig{
			config.PipelineKey("qwen", "qwen-max", "alias-1"): {
				Provider: config.ProviderTarget{Type: "qwen", Auth: config.ProviderAuth{Type: "oauth", TokenFile: "/tmp/qwen.json"}},
			},
			config.PipelineKey("deepseek", "deepseek-chat", "static"): {
				Provider: config.ProviderTarget{Type: "deepseek", Auth: config.ProviderAuth{Type: "apikey", APIKey: "sk-x"}},
			},
			config.PipelineKey("geminicli", "gemini-2.0", "alias-2"): {
				Provider: config.ProviderTarget{Type: "geminicli", Auth: config.ProviderAuth{Type: "oauth", TokenFile: "/tmp/gcli.json"}},
			},
		},
		Classification: classifier.DefaultConfig(),
	}
}

func fakeResolver(known map[string]bool) OAuthConfigResolver {
	return func(providerType string) (*oauth2.Config, bool) {
		if !known[providerType] {
			return nil, false
		}
		return &oauth2.Config{}, true
	}
}

func TestDiscover_ReturnsOnlyOAuthTargets(t *testing.T) {
	cfg := testConfig()
	targets := Discover(cfg, fakeResolver(map[string]bool{"qwen": true, "geminicli": true}))

	require.Len(t, targets, 2)
	byProvider := map[string]TokenTarget{}
	for _, t := range targets {
		byProvider[t.ProviderID] = t
	}
	assert.Contains(t, byProvider, "qwen")
	assert.Contains(t, byProvider, "geminicli")
	assert.NotContains(t, byProvider, "deepseek")
}

func TestDiscover_SkipsUnresolvableProviderTypes(t *testing.T) {
	cfg := testConfig()
	targets := Discover(cfg, fakeResolver(map[string]bool{}))
	assert.Empty(t, targets)
}

func TestDiscover_DeduplicatesAcrossRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Pool["fallback"] = cfg.Pool["default"]

	targets := Discover(cfg, fakeResolver(map[string]bool{"qwen": true, "geminicli": true}))
	assert.Len(t, targets, 2)
}

func TestTokenTarget_HistoryKey_MatchesPipelineKey(t *testing.T) {
	target := TokenTarget{ProviderID: "qwen", ModelID: "qwen-max", KeyID: "alias-1"}
	assert.Equal(t, config.PipelineKey("qwen", "qwen-max", "alias-1"), target.HistoryKey())
}
