// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"encoding/json"
	"testing"

	"github.com/BaSui01/routecodex/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiCodec_EncodeRequest_MapsAssistantRoleToModel(t *testing.T) {
	c := geminiCodec{}
	body, err := c.EncodeRequest(&pipeline.Request{
		Messages: []pipeline.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}, "gemini-2.0", 1024)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	contents := decoded["contents"].([]any)
	require.Len(t, contents, 2)
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
}

func TestGeminiCodec_EncodeRequest_DropsSystemRole(t *testing.T) {
	c := geminiCodec{}
	body, err := c.EncodeRequest(&pipeline.Request{
		Messages: []pipeline.Message{{Role: "system", Content: "be terse"}, {Role: "user", Content: "hi"}},
	}, "m", 100)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Len(t, decoded["contents"].([]any), 1)
}

func TestGeminiCodec_DecodeResponse_ConcatenatesParts(t *testing.T) {
	c := geminiCodec{}
	body := []byte(`{"candidates":[{"content":{"parts":[{"text":"hello "},{"text":"world"}]},"finishReason":"STOP"}],
		"usageMetadata":{"promptTokenCount":2,"candidatesTokenCount":3,"totalTokenCount":5}}`)
	resp, err := c.DecodeResponse(body, "gemini-2.0")
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Content)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestGeminiCLICodec_EncodeRequest_WrapsInCloudCodeEnvelope(t *testing.T) {
	c := &geminiCLICodec{antigravity: true, projectID: func() string { return "proj-1" }}
	body, err := c.EncodeRequest(&pipeline.Request{
		Messages: []pipeline.Message{{Role: "user", Content: "hi"}},
	}, "m", 100)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "proj-1", decoded["project"])
	assert.Regexp(t, `^agent-`, decoded["requestId"])
	assert.Contains(t, decoded, "request")
}

func TestGeminiCLICodec_RequestIDPrefix_DiffersForGeminiCLI(t *testing.T) {
	c := &geminiCLICodec{antigravity: false, projectID: func() string { return "p" }}
	body, err := c.EncodeRequest(&pipeline.Request{}, "m", 100)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Regexp(t, `^req-`, decoded["requestId"])
}

func TestGeminiCLICodec_DecodeResponse_CachesSignatureBySessionKey(t *testing.T) {
	cache := newSignatureCache()
	c := &geminiCLICodec{sigCache: cache, alias: "alias-1", sessionID: "sess-1"}

	body := []byte(`{"response":{"candidates":[{"content":{"parts":[{"text":"hi"}]},"finishReason":"STOP"}]},"signature":"sig-abc"}`)
	_, err := c.DecodeResponse(body, "m")
	require.NoError(t, err)

	sig, ok := cache.get("alias-1", "sess-1")
	require.True(t, ok)
	assert.Equal(t, "sig-abc", sig)
}

func TestGeminiCLICodec_EncodeRequest_EchoesCachedSignature(t *testing.T) {
	cache := newSignatureCache()
	cache.put("alias-1", "sess-1", "sig-xyz")
	c := &geminiCLICodec{sigCache: cache, alias: "alias-1", sessionID: "sess-1", projectID: func() string { return "p" }}

	body, err := c.EncodeRequest(&pipeline.Request{}, "m", 10)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "sig-xyz", decoded["signature"])
}
