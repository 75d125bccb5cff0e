// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package dispatcher

import (
	"fmt"
	"net/http"

	"github.com/BaSui01/routecodex/pipeline"
)

// streamResponse renders resp as the entry protocol's SSE framing.
// Every provider is always non-streaming upstream (§4.4), so there is
// never more than one complete Response to frame; this degrades it into
// that protocol's normal one-or-few-frame delta sequence rather than
// simulating a token-by-token stream the upstream never produced.
func streamResponse(w http.ResponseWriter, protocol string, resp *pipeline.Response) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	switch protocol {
	case pipeline.ProtocolOpenAIChat:
		writeOpenAIChatSSE(w, resp)
	case pipeline.ProtocolOpenAIResponses:
		writeOpenAIResponsesSSE(w, resp)
	case pipeline.ProtocolAnthropic:
		writeAnthropicSSE(w, resp)
	case pipeline.ProtocolGemini:
		writeGeminiSSE(w, resp)
	}
}

func writeOpenAIChatSSE(w http.ResponseWriter, resp *pipeline.Response) {
	sseWrite(w, "", map[string]any{
		"object": "chat.completion.chunk",
		"model":  resp.Model,
		"choices": []map[string]any{{
			"index": 0,
			"delta": map[string]any{
				"role":       "assistant",
				"content":    resp.Content,
				"tool_calls": toolCallDeltas(resp.ToolCalls),
			},
			"finish_reason": resp.FinishReason,
		}},
		"usage": resp.Usage,
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeOpenAIResponsesSSE(w http.ResponseWriter, resp *pipeline.Response) {
	sseWrite(w, "response.output_text.delta", map[string]any{"delta": resp.Content})
	sseWrite(w, "response.completed", map[string]any{
		"response": map[string]any{
			"model": resp.Model,
			"output": []map[string]any{{
				"role":    "assistant",
				"content": []map[string]any{{"type": "output_text", "text": resp.Content}},
			}},
			"usage": resp.Usage,
		},
	})
}

func writeAnthropicSSE(w http.ResponseWriter, resp *pipeline.Response) {
	sseWrite(w, "message_start", map[string]any{
		"type":    "message_start",
		"message": map[string]any{"model": resp.Model, "role": "assistant"},
	})
	sseWrite(w, "content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": 0,
		"delta": map[string]any{"type": "text_delta", "text": resp.Content},
	})
	sseWrite(w, "message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": resp.FinishReason},
		"usage": map[string]any{"output_tokens": resp.Usage.CompletionTokens},
	})
	sseWrite(w, "message_stop", map[string]any{"type": "message_stop"})
}

func writeGeminiSSE(w http.ResponseWriter, resp *pipeline.Response) {
	sseWrite(w, "", map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": resp.Content}}},
			"finishReason": resp.FinishReason,
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     resp.Usage.PromptTokens,
			"candidatesTokenCount": resp.Usage.CompletionTokens,
			"totalTokenCount":      resp.Usage.TotalTokens,
		},
	})
}

func toolCallDeltas(tcs []pipeline.ToolCall) []map[string]any {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(tcs))
	for i, tc := range tcs {
		out = append(out, map[string]any{
			"index":    i,
			"id":       tc.ID,
			"type":     "function",
			"function": map[string]any{"name": tc.Name, "arguments": tc.Arguments},
		})
	}
	return out
}
