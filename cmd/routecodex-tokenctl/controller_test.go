// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/router"
	"github.com/BaSui01/routecodex/tokenstore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Pool = router.Pool{
		"default": []router.Target{{ProviderID: "qwen", ModelID: "qwen-max", KeyID: "alias-1"}},
	}
	cfg.Pipelines = map[string]config.PipelineTargetConfig{
		config.PipelineKey("qwen", "qwen-max", "alias-1"): {
			Provider: config.ProviderTarget{
				Type:    "qwen",
				BaseURL: "https://dashscope.aliyuncs.com",
				Auth:    config.ProviderAuth{Type: "oauth", TokenFile: filepath.Join(t.TempDir(), "qwen.json")},
			},
		},
	}
	dir := t.TempDir()
	cfg.Extensions = map[string]any{
		"tokenHistoryPath":  filepath.Join(dir, "history.json"),
		"tokenEventLogPath": filepath.Join(dir, "events.jsonl"),
	}
	return cfg
}

func TestExtensionPath_FallsBackWhenKeyAbsent(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, "default.json", extensionPath(cfg, "missing", "default.json"))
}

func TestExtensionPath_UsesConfiguredValue(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extensions["custom"] = "/tmp/custom.json"
	assert.Equal(t, "/tmp/custom.json", extensionPath(cfg, "custom", "default.json"))
}

func TestController_Providers_ListsConfiguredProviderTypes(t *testing.T) {
	cfg := testConfig(t)
	ctl, err := newController(cfg, nil)
	require.NoError(t, err)
	defer ctl.Close()

	require.NoError(t, ctl.providers())
}

func TestController_Servers_ListsPipelineBaseURLs(t *testing.T) {
	cfg := testConfig(t)
	ctl, err := newController(cfg, nil)
	require.NoError(t, err)
	defer ctl.Close()

	require.NoError(t, ctl.servers())
}

func TestController_Validate_AllFailsWhenTokenFileMissing(t *testing.T) {
	cfg := testConfig(t)
	ctl, err := newController(cfg, nil)
	require.NoError(t, err)
	defer ctl.Close()

	err = ctl.validate("all")
	assert.Error(t, err)
}

func TestController_Validate_AllPassesWhenTokenFresh(t *testing.T) {
	cfg := testConfig(t)
	tokenFile := cfg.Pipelines[config.PipelineKey("qwen", "qwen-max", "alias-1")].Provider.Auth.TokenFile

	require.NoError(t, tokenstore.SavePayload(tokenFile, &tokenstore.Payload{
		AccessToken: "access",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}))

	ctl, err := newController(cfg, nil)
	require.NoError(t, err)
	defer ctl.Close()

	assert.NoError(t, ctl.validate("all"))
}

func TestController_Oauth_RejectsUnknownSelector(t *testing.T) {
	cfg := testConfig(t)
	ctl, err := newController(cfg, nil)
	require.NoError(t, err)
	defer ctl.Close()

	err = ctl.oauth("nonexistent.selector.here", false)
	assert.Error(t, err)
}
