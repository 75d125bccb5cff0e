// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package pipeline implements the per-target request pipeline: LLMSwitch
// (protocol translation) → Compatibility (provider-family shape
// adjustments) → Provider (auth, HTTP, snapshot, postprocess).
package pipeline

import "time"

// Message is the pipeline's canonical chat message shape, shared across
// every entry protocol (OpenAI Chat, OpenAI Responses, Anthropic
// Messages, Gemini) and every provider wire body.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Images     []string   `json:"-"` // raw image_url/data refs, extracted for classifier use
}

// ToolCall is one function/tool invocation, request- or response-side.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSchema is one tool definition offered to the model.
type ToolSchema struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// Request is the canonical internal request shape a pipeline operates
// on, after the dispatcher's LLMSwitch.FromEntry step has normalized the
// wire-protocol-specific envelope away.
type Request struct {
	EntryProtocol string         `json:"-"`
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	System        string         `json:"-"`
	Tools         []ToolSchema   `json:"tools,omitempty"`
	ToolChoice    any            `json:"tool_choice,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   float64        `json:"temperature,omitempty"`
	TopP          float64        `json:"top_p,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	Metadata      map[string]any `json:"-"`

	// OrigModel preserves the inbound model name so the response can
	// report it back to the caller after the pipeline-configured model
	// has overridden the wire value.
	OrigModel string `json:"-"`
}

// Usage is token accounting reported back to the caller.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the canonical internal response shape, translated back to
// the entry protocol's wire format by LLMSwitch.ToEntry.
type Response struct {
	Model        string         `json:"model"`
	Content      string         `json:"content"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
	FinishReason string         `json:"finish_reason"`
	Usage        Usage          `json:"usage"`
	CreatedAt    time.Time      `json:"-"`
	Metadata     map[string]any `json:"-"`
}

// StreamChunk is one normalized delta of a streaming response. Event
// mirrors the normalized SSE event names from spec §4.4
// ("provider.data" / "provider.done" / "error").
type StreamChunk struct {
	Event        string     `json:"event"`
	Delta        string     `json:"delta,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Err          error      `json:"-"`
}
