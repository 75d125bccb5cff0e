// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/routecodex/oauth"
	"github.com/BaSui01/routecodex/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestManualRefresh_RejectsStaticAlias(t *testing.T) {
	mgr := oauth.NewManager(nil)
	target := TokenTarget{ProviderID: "deepseek", ModelID: "deepseek-chat", KeyID: StaticAlias}

	_, err := ManualRefresh(context.Background(), mgr, nil, nil, target, nil, nil, false)
	assert.ErrorIs(t, err, ErrStaticAlias)
}

func TestManualRefresh_ForcesReauthorizeBypassingValidTokenShortCircuit(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "qwen.json")
	require.NoError(t, tokenstore.SavePayload(tokenFile, &tokenstore.Payload{
		AccessToken: "still-valid", ExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
	}))

	history, err := tokenstore.OpenHistory(filepath.Join(dir, "history.json"))
	require.NoError(t, err)
	events, err := tokenstore.OpenEventLog(filepath.Join(dir, "events.log"))
	require.NoError(t, err)
	defer events.Close()

	mgr := oauth.NewManager(nil)
	target := TokenTarget{
		ProviderID: "qwen", ModelID: "qwen-max", KeyID: "alias-1",
		TokenFile:   tokenFile,
		OAuthConfig: &oauth2.Config{Endpoint: oauth2.Endpoint{AuthURL: "http://127.0.0.1:0", TokenURL: "http://127.0.0.1:0"}},
	}

	// No browser redirect will ever land on the loopback callback here, so
	// this exercises ForceReauthorize's bypass of the "still valid, return
	// cached" short-circuit (it blocks waiting for a callback instead of
	// returning the cached payload) without needing a live browser.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = ManualRefresh(ctx, mgr, history, events, target, func(string) error { return nil }, nil, false)
	require.Error(t, err)

	agg := history.Get(target.HistoryKey())
	require.Equal(t, 1, agg.TotalAttempts)
	assert.Equal(t, tokenstore.ModeManual, agg.LastMode)
	assert.Equal(t, "failure", agg.LastResult)
	assert.Equal(t, 0, agg.FailureStreak, "manual refreshes must never contribute to the auto-suspend streak")
}
