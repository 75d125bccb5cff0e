// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/BaSui01/routecodex/auth"
	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T, target config.ProviderTarget, snapshotDir string) Options {
	t.Helper()
	return Options{
		Info:        Info{ProviderID: "p", ModelID: "m", KeyID: "k", Vendor: "test"},
		Target:      target,
		AuthProv:    &auth.APIKeyProvider{APIKey: "test-key"},
		SnapshotDir: snapshotDir,
	}
}

func TestBaseProvider_SendRequest_RoundTripsThroughCodec(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "m", "choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hi there"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 2, "total_tokens": 3},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	opts := testOptions(t, config.ProviderTarget{BaseURL: srv.URL}, dir)
	bp := NewBaseProvider(opts, &openAICompatCodec{}, "/chat/completions")

	resp, err := bp.SendRequest(context.Background(), &pipeline.Request{
		Model: "m", Messages: []pipeline.Message{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestBaseProvider_SendRequest_ClassifiesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	opts := testOptions(t, config.ProviderTarget{
		BaseURL: srv.URL,
		// Bounded to the minimum retry count the client allows overriding
		// to 1s total backoff instead of DefaultPolicy's ~7s worth.
		MaxRetries: 1,
	}, dir)
	bp := NewBaseProvider(opts, &openAICompatCodec{}, "/chat/completions")

	_, err := bp.SendRequest(context.Background(), &pipeline.Request{Model: "m"})
	require.Error(t, err)
}

func TestBaseProvider_SendRequest_WritesSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}}})
	}))
	defer srv.Close()

	dir := t.TempDir()
	opts := testOptions(t, config.ProviderTarget{BaseURL: srv.URL}, dir)
	bp := NewBaseProvider(opts, &openAICompatCodec{}, "/chat/completions")

	ctx := WithRequestID(context.Background(), "req-1")
	req := &pipeline.Request{Model: "m", Metadata: map[string]any{"entryEndpoint": "openai-chat"}}
	_, err := bp.SendRequest(ctx, req)
	require.NoError(t, err)

	bucket := filepath.Join(dir, "openai-chat")
	entries, err := os.ReadDir(bucket)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "req-1_provider-request.json")
	assert.Contains(t, names, "req-1_provider-response.json")
	assert.Contains(t, names, "req-1_provider-pair.json")
}

func TestBaseProvider_CheckHealth_TreatsNotFoundAsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	opts := testOptions(t, config.ProviderTarget{BaseURL: srv.URL}, t.TempDir())
	bp := NewBaseProvider(opts, &openAICompatCodec{}, "/chat/completions")
	assert.True(t, bp.CheckHealth(context.Background()))
}

func TestResolveMaxTokens_PriorityOrder(t *testing.T) {
	target := config.ProviderTarget{Extensions: map[string]any{"maxTokens": 2048}}
	req := &pipeline.Request{}
	assert.Equal(t, 2048, resolveMaxTokens(req, target))

	req.MaxTokens = 512
	assert.Equal(t, 512, resolveMaxTokens(req, target))

	assert.Equal(t, DefaultMaxTokens, resolveMaxTokens(&pipeline.Request{}, config.ProviderTarget{}))
}

func TestInitialize_FailsWithoutBaseURL(t *testing.T) {
	opts := testOptions(t, config.ProviderTarget{}, t.TempDir())
	bp := NewBaseProvider(opts, &openAICompatCodec{}, "/chat/completions")
	err := bp.Initialize(context.Background())
	assert.Error(t, err)
}
