// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package dispatcher

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/routecodex/classifier"
	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockUpstream serves the OpenAI-Chat-compatible response shape every
// openAICompatCodec-based provider (openai, lmstudio, glm, deepseek,
// iflow) decodes, letting the test exercise the full dispatcher chain
// without a live vendor.
func mockUpstream(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8},
		})
	}))
}

func testGatewayConfig(upstreamBaseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Pool = router.Pool{
		"default": []router.Target{{ProviderID: "openai", ModelID: "gpt-4o-mini", KeyID: "k1"}},
	}
	cfg.Pipelines = map[string]config.PipelineTargetConfig{
		config.PipelineKey("openai", "gpt-4o-mini", "k1"): {
			Provider: config.ProviderTarget{
				Type:    "openai",
				BaseURL: upstreamBaseURL,
				Auth:    config.ProviderAuth{Type: "apikey", APIKey: "test-key"},
			},
		},
	}
	cfg.Classification = classifier.DefaultConfig()
	return cfg
}

func TestDispatcher_ChatCompletions_RoutesAndReturnsContent(t *testing.T) {
	upstream := mockUpstream(t, "hello from upstream")
	defer upstream.Close()

	d := New(testGatewayConfig(upstream.URL), Options{})

	body := `{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	d.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wire))
	choices := wire["choices"].([]any)
	msg := choices[0].(map[string]any)["message"].(map[string]any)
	assert.Equal(t, "hello from upstream", msg["content"])
}

func TestDispatcher_ChatCompletions_StreamingEmitsSSEFrames(t *testing.T) {
	upstream := mockUpstream(t, "streamed content")
	defer upstream.Close()

	d := New(testGatewayConfig(upstream.URL), Options{})

	body := `{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}],"stream":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	d.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	out := rec.Body.String()
	assert.Contains(t, out, "data: ")
	assert.Contains(t, out, "streamed content")
	assert.Contains(t, out, "[DONE]")
}

func TestDispatcher_NoTargetsForRoute_ReturnsJSONErrorEnvelope(t *testing.T) {
	cfg := testGatewayConfig("http://127.0.0.1:0")
	delete(cfg.Pool, "default")
	d := New(cfg, Options{})

	body := `{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	d.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wire))
	errObj := wire["error"].(map[string]any)
	assert.NotEmpty(t, errObj["message"])
	assert.Equal(t, float64(http.StatusServiceUnavailable), errObj["statusCode"])
}

func TestDispatcher_StreamingRequest_UpstreamFailure_EmitsTerminalErrorFrame(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer failing.Close()

	d := New(testGatewayConfig(failing.URL), Options{})

	body := `{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}],"stream":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	d.Routes().ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "event: error")
}

func TestDispatcher_MethodNotAllowed(t *testing.T) {
	d := New(testGatewayConfig("http://127.0.0.1:0"), Options{})
	req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()

	d.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDispatcher_Healthz(t *testing.T) {
	d := New(testGatewayConfig("http://127.0.0.1:0"), Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	d.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDispatcher_GeminiGenerateContent_ParsesModelFromPath(t *testing.T) {
	upstream := mockUpstream(t, "gemini reply")
	defer upstream.Close()

	cfg := testGatewayConfig(upstream.URL)
	cfg.Pool = router.Pool{
		"default": []router.Target{{ProviderID: "openai", ModelID: "gemini-2.0", KeyID: "k1"}},
	}
	cfg.Pipelines = map[string]config.PipelineTargetConfig{
		config.PipelineKey("openai", "gemini-2.0", "k1"): cfg.Pipelines[config.PipelineKey("openai", "gpt-4o-mini", "k1")],
	}

	d := New(cfg, Options{})

	body := `{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1beta/models/gemini-2.0:generateContent", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	d.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wire))
	candidates := wire["candidates"].([]any)
	content := candidates[0].(map[string]any)["content"].(map[string]any)
	parts := content["parts"].([]any)
	assert.Equal(t, "gemini reply", parts[0].(map[string]any)["text"])
}
