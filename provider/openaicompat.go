// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/routecodex/internal/rcerrors"
	"github.com/BaSui01/routecodex/pipeline"
)

// openAICompatCodec encodes/decodes the OpenAI Chat Completions wire
// shape shared by GLM, Qwen, iFlow, DeepSeek, OpenAI itself and LM
// Studio. Per-family adapters wrap it to add allow-listing, extra
// fields or business-error taxonomies.
type openAICompatCodec struct {
	// AllowFields restricts the encoded JSON to this key set when
	// non-empty (Qwen's documented payload allow-list).
	AllowFields map[string]bool
	// ReportCodes maps a vendor business-error code found in the body
	// to a human-readable hint (e.g. GLM's 1210/1213/1302/1303/1113).
	ReportCodes map[string]string
}

type compatMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	ToolCalls  []compatToolCal `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type compatToolCal struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type compatRequest struct {
	Model       string          `json:"model"`
	Messages    []compatMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Tools       []any           `json:"tools,omitempty"`
	ToolChoice  any             `json:"tool_choice,omitempty"`
	Stream      bool            `json:"stream"`
}

func (c *openAICompatCodec) EncodeRequest(req *pipeline.Request, model string, maxTokens int) ([]byte, error) {
	out := compatRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		ToolChoice:  req.ToolChoice,
		Stream:      false, // §4.4: provider is always non-streaming upstream unless it opts in
	}
	for _, m := range req.Messages {
		cm := compatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var ct compatToolCal
			ct.ID = tc.ID
			ct.Type = "function"
			ct.Function.Name = tc.Name
			ct.Function.Arguments = tc.Arguments
			cm.ToolCalls = append(cm.ToolCalls, ct)
		}
		out.Messages = append(out.Messages, cm)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if len(c.AllowFields) == 0 {
		return body, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	filtered := make(map[string]json.RawMessage, len(c.AllowFields))
	for k, v := range raw {
		if c.AllowFields[k] {
			filtered[k] = v
		}
	}
	return json.Marshal(filtered)
}

type compatChoice struct {
	Message      compatMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type compatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type compatResponse struct {
	Model   string         `json:"model"`
	Choices []compatChoice `json:"choices"`
	Usage   compatUsage    `json:"usage"`
}

func (c *openAICompatCodec) DecodeResponse(body []byte, origModel string) (*pipeline.Response, error) {
	var wire compatResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	resp := &pipeline.Response{
		Model:     origModel,
		CreatedAt: time.Now(),
		Usage: pipeline.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}
	if len(wire.Choices) > 0 {
		choice := wire.Choices[0]
		resp.Content = choice.Message.Content
		resp.FinishReason = choice.FinishReason
		for _, tc := range choice.Message.ToolCalls {
			resp.ToolCalls = append(resp.ToolCalls, pipeline.ToolCall{
				ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
			})
		}
	}
	return resp, nil
}

func (c *openAICompatCodec) VendorReport(statusCode int, body []byte) *rcerrors.VendorReport {
	if len(c.ReportCodes) == 0 {
		return nil
	}
	var parsed struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	code := parsed.Error.Code
	if code == "" {
		code = parsed.Code
	}
	if hint, ok := c.ReportCodes[code]; ok {
		return &rcerrors.VendorReport{Code: code, Hint: hint}
	}
	return nil
}
