// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/routecodex/classifier"
	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/router"
	"github.com/BaSui01/routecodex/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func mockRefreshServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-token",
			"refresh_token": "fresh-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
}

func singleTargetConfig(tokenFile string) *config.Config {
	return &config.Config{
		Pool: router.Pool{
			"default": []router.Target{{ProviderID: "qwen", ModelID: "qwen-max", KeyID: "alias-1"}},
		},
		Pipelines: map[string]config.PipelineTargetConfig{
			config.PipelineKey("qwen", "qwen-max", "alias-1"): {
				Provider: config.ProviderTarget{Type: "qwen", Auth: config.ProviderAuth{Type: "oauth", TokenFile: tokenFile}},
			},
		},
		Classification: classifier.DefaultConfig(),
	}
}

func TestDaemon_Tick_RefreshesExpiringTokenAndRecordsSuccess(t *testing.T) {
	srv := mockRefreshServer(t)
	defer srv.Close()

	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "qwen.json")
	require.NoError(t, tokenstore.SavePayload(tokenFile, &tokenstore.Payload{
		AccessToken:  "stale",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}))

	cfg := singleTargetConfig(tokenFile)
	history, err := tokenstore.OpenHistory(filepath.Join(dir, "history.json"))
	require.NoError(t, err)
	events, err := tokenstore.OpenEventLog(filepath.Join(dir, "events.log"))
	require.NoError(t, err)
	defer events.Close()

	resolver := func(providerType string) (*oauth2.Config, bool) {
		return &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL}}, true
	}

	d := New(cfg, resolver, history, events, nil, Options{MaxWorkers: 2}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.tick(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		agg := history.Get(config.PipelineKey("qwen", "qwen-max", "alias-1"))
		if agg.TotalAttempts > 0 {
			assert.Equal(t, 1, agg.RefreshSuccesses)
			assert.Equal(t, "success", agg.LastResult)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("refresh was never recorded")
}

func TestDaemon_Tick_SkipsValidToken(t *testing.T) {
	srv := mockRefreshServer(t)
	defer srv.Close()

	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "qwen.json")
	require.NoError(t, tokenstore.SavePayload(tokenFile, &tokenstore.Payload{
		AccessToken: "still-good",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}))

	cfg := singleTargetConfig(tokenFile)
	history, err := tokenstore.OpenHistory(filepath.Join(dir, "history.json"))
	require.NoError(t, err)
	events, err := tokenstore.OpenEventLog(filepath.Join(dir, "events.log"))
	require.NoError(t, err)
	defer events.Close()

	resolver := func(providerType string) (*oauth2.Config, bool) {
		return &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL}}, true
	}

	d := New(cfg, resolver, history, events, nil, Options{MaxWorkers: 2}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.tick(ctx)

	time.Sleep(100 * time.Millisecond)
	agg := history.Get(config.PipelineKey("qwen", "qwen-max", "alias-1"))
	assert.Equal(t, 0, agg.TotalAttempts)
}

func TestDaemon_RefreshOne_SkipsAutoSuspendedUntilMtimeAdvances(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "qwen.json")
	require.NoError(t, tokenstore.SavePayload(tokenFile, &tokenstore.Payload{
		AccessToken:  "stale",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(-time.Minute).UnixMilli(),
	}))
	_, mtime, err := tokenstore.LoadPayload(tokenFile)
	require.NoError(t, err)

	history, err := tokenstore.OpenHistory(filepath.Join(dir, "history.json"))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		history.RecordRefreshResult("qwen.qwen-max.alias-1", tokenstore.ModeAuto, false, 1, &mtime)
	}
	agg := history.Get("qwen.qwen-max.alias-1")
	require.True(t, agg.AutoSuspended)

	events, err := tokenstore.OpenEventLog(filepath.Join(dir, "events.log"))
	require.NoError(t, err)
	defer events.Close()

	d := New(&config.Config{}, func(string) (*oauth2.Config, bool) { return &oauth2.Config{}, true }, history, events, nil, Options{MaxWorkers: 1}, nil)

	target := TokenTarget{ProviderID: "qwen", ModelID: "qwen-max", KeyID: "alias-1", TokenFile: tokenFile, OAuthConfig: &oauth2.Config{}}
	err = d.refreshOne(context.Background(), target)
	require.NoError(t, err)

	// Suspended and mtime unchanged: refreshOne must not have attempted
	// another refresh (still 3 attempts recorded, not 4).
	agg = history.Get("qwen.qwen-max.alias-1")
	assert.Equal(t, 3, agg.TotalAttempts)
}
