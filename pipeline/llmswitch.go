package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LLMSwitch translates between an entry wire protocol and the pipeline's
// canonical Request/Response shape. It is side-effect-free: every method
// returns a new value rather than mutating its argument.
type LLMSwitch interface {
	// FromEntry parses a raw entry-protocol request body into the
	// canonical Request shape.
	FromEntry(protocol string, body []byte) (*Request, error)

	// ToEntry renders a canonical Response back into the entry
	// protocol's wire JSON shape.
	ToEntry(protocol string, resp *Response) ([]byte, error)
}

const (
	ProtocolOpenAIChat      = "openai-chat"
	ProtocolOpenAIResponses = "openai-responses"
	ProtocolAnthropic       = "anthropic-messages"
	ProtocolGemini          = "gemini"
)

// Switch is the default LLMSwitch, grounded on the teacher's
// middleware.Request/Response shim shape but generalized from a single
// OpenAI-like envelope to the four entry protocols this gateway accepts.
type Switch struct{}

func NewSwitch() *Switch { return &Switch{} }

func (s *Switch) FromEntry(protocol string, body []byte) (*Request, error) {
	switch protocol {
	case ProtocolOpenAIChat:
		return fromOpenAIChat(body)
	case ProtocolOpenAIResponses:
		return fromOpenAIResponses(body)
	case ProtocolAnthropic:
		return fromAnthropic(body)
	case ProtocolGemini:
		return fromGemini(body)
	default:
		return nil, fmt.Errorf("pipeline: unsupported entry protocol %q", protocol)
	}
}

func (s *Switch) ToEntry(protocol string, resp *Response) ([]byte, error) {
	switch protocol {
	case ProtocolOpenAIChat:
		return toOpenAIChat(resp)
	case ProtocolOpenAIResponses:
		return toOpenAIResponses(resp)
	case ProtocolAnthropic:
		return toAnthropic(resp)
	case ProtocolGemini:
		return toGemini(resp)
	default:
		return nil, fmt.Errorf("pipeline: unsupported entry protocol %q", protocol)
	}
}

// --- OpenAI Chat Completions ---

type openAIChatWire struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  any             `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role       string             `json:"role"`
	Content    json.RawMessage    `json:"content"`
	ToolCalls  []openAIToolCall   `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  any    `json:"parameters"`
	} `json:"function"`
}

func fromOpenAIChat(body []byte) (*Request, error) {
	var wire openAIChatWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("pipeline: decode openai-chat request: %w", err)
	}
	req := &Request{
		EntryProtocol: ProtocolOpenAIChat,
		Model:         wire.Model,
		OrigModel:     wire.Model,
		MaxTokens:     wire.MaxTokens,
		Temperature:   wire.Temperature,
		TopP:          wire.TopP,
		Stop:          wire.Stop,
		Stream:        wire.Stream,
		ToolChoice:    wire.ToolChoice,
	}
	for _, m := range wire.Messages {
		msg := Message{Role: m.Role, ToolCallID: m.ToolCallID}
		msg.Content, msg.Images = flattenOpenAIContent(m.Content)
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}
		req.Messages = append(req.Messages, msg)
	}
	for _, t := range wire.Tools {
		req.Tools = append(req.Tools, ToolSchema{Name: t.Function.Name, Description: t.Function.Description, Parameters: t.Function.Parameters})
	}
	return req, nil
}

// flattenOpenAIContent handles both the plain-string and the multi-part
// content-array shapes, and pulls out any image_url parts for the
// classifier's vision detection.
func flattenOpenAIContent(raw json.RawMessage) (text string, images []string) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var parts []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		ImageURL struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range parts {
		switch {
		case strings.Contains(p.Type, "image"):
			images = append(images, p.ImageURL.URL)
		case p.Text != "":
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), images
}

func toOpenAIChat(resp *Response) ([]byte, error) {
	wire := map[string]any{
		"model":          resp.Model,
		"finish_reason":  resp.FinishReason,
		"usage":          resp.Usage,
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": resp.FinishReason,
				"message": map[string]any{
					"role":       "assistant",
					"content":    resp.Content,
					"tool_calls": toOpenAIToolCalls(resp.ToolCalls),
				},
			},
		},
	}
	return json.Marshal(wire)
}

func toOpenAIToolCalls(tcs []ToolCall) []map[string]any {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(tcs))
	for _, tc := range tcs {
		out = append(out, map[string]any{
			"id":   tc.ID,
			"type": "function",
			"function": map[string]any{
				"name":      tc.Name,
				"arguments": tc.Arguments,
			},
		})
	}
	return out
}

// --- OpenAI Responses API ---

type openAIResponsesWire struct {
	Model string `json:"model"`
	Input []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"input"`
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
}

func fromOpenAIResponses(body []byte) (*Request, error) {
	var wire openAIResponsesWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("pipeline: decode openai-responses request: %w", err)
	}
	req := &Request{
		EntryProtocol: ProtocolOpenAIResponses,
		Model:         wire.Model,
		OrigModel:     wire.Model,
		MaxTokens:     wire.MaxOutputTokens,
	}
	for _, item := range wire.Input {
		var sb strings.Builder
		for _, c := range item.Content {
			sb.WriteString(c.Text)
		}
		req.Messages = append(req.Messages, Message{Role: item.Role, Content: sb.String()})
	}
	return req, nil
}

func toOpenAIResponses(resp *Response) ([]byte, error) {
	wire := map[string]any{
		"model": resp.Model,
		"output": []map[string]any{
			{
				"role": "assistant",
				"content": []map[string]any{
					{"type": "output_text", "text": resp.Content},
				},
			},
		},
		"usage": resp.Usage,
	}
	return json.Marshal(wire)
}

// --- Anthropic Messages ---

type anthropicWire struct {
	Model     string `json:"model"`
	System    string `json:"system,omitempty"`
	Messages  []struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		InputSchema any    `json:"input_schema"`
	} `json:"tools,omitempty"`
	MaxTokens int `json:"max_tokens"`
}

func fromAnthropic(body []byte) (*Request, error) {
	var wire anthropicWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("pipeline: decode anthropic-messages request: %w", err)
	}
	req := &Request{
		EntryProtocol: ProtocolAnthropic,
		Model:         wire.Model,
		OrigModel:     wire.Model,
		System:        wire.System,
		MaxTokens:     wire.MaxTokens,
	}
	if wire.System != "" {
		req.Messages = append(req.Messages, Message{Role: "system", Content: wire.System})
	}
	for _, m := range wire.Messages {
		req.Messages = append(req.Messages, Message{Role: m.Role, Content: anthropicContentToText(m.Content)})
	}
	for _, t := range wire.Tools {
		req.Tools = append(req.Tools, ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
	}
	return req, nil
}

func anthropicContentToText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var sb strings.Builder
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				sb.WriteString(text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}

func toAnthropic(resp *Response) ([]byte, error) {
	content := []map[string]any{{"type": "text", "text": resp.Content}}
	for _, tc := range resp.ToolCalls {
		var args any
		_ = json.Unmarshal([]byte(tc.Arguments), &args)
		content = append(content, map[string]any{
			"type":  "tool_use",
			"id":    tc.ID,
			"name":  tc.Name,
			"input": args,
		})
	}
	wire := map[string]any{
		"model":       resp.Model,
		"role":        "assistant",
		"content":     content,
		"stop_reason": resp.FinishReason,
		"usage": map[string]any{
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
		},
	}
	return json.Marshal(wire)
}

// --- Gemini ---

type geminiWire struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature,omitempty"`
	} `json:"generationConfig,omitempty"`
}

func fromGemini(body []byte) (*Request, error) {
	var wire geminiWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("pipeline: decode gemini request: %w", err)
	}
	req := &Request{
		EntryProtocol: ProtocolGemini,
		MaxTokens:     wire.GenerationConfig.MaxOutputTokens,
		Temperature:   wire.GenerationConfig.Temperature,
	}
	for _, c := range wire.Contents {
		role := c.Role
		if role == "model" {
			role = "assistant"
		}
		var sb strings.Builder
		for _, p := range c.Parts {
			sb.WriteString(p.Text)
		}
		req.Messages = append(req.Messages, Message{Role: role, Content: sb.String()})
	}
	return req, nil
}

func toGemini(resp *Response) ([]byte, error) {
	wire := map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": resp.Content}},
				},
				"finishReason": resp.FinishReason,
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     resp.Usage.PromptTokens,
			"candidatesTokenCount": resp.Usage.CompletionTokens,
			"totalTokenCount":      resp.Usage.TotalTokens,
		},
	}
	return json.Marshal(wire)
}
