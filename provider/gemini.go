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

// geminiCodec encodes/decodes the plain Gemini API wire shape
// (contents[]/parts[] request, candidates[]/usageMetadata response), as
// opposed to Gemini-CLI/Antigravity's Cloud-Code-Assist envelope.
type geminiCodec struct{}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig,omitempty"`
}

func (geminiCodec) EncodeRequest(req *pipeline.Request, _ string, maxTokens int) ([]byte, error) {
	out := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
		},
	}
	var preamble string
	for _, m := range req.Messages {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		if role == "system" {
			// Gemini has no system role in contents; fold it into the
			// first user turn that follows it as a preamble.
			preamble += m.Content + "\n\n"
			continue
		}
		text := m.Content
		if role == "user" && preamble != "" {
			text = preamble + text
			preamble = ""
		}
		out.Contents = append(out.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: text}}})
	}
	return json.Marshal(out)
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

func (geminiCodec) DecodeResponse(body []byte, origModel string) (*pipeline.Response, error) {
	var wire geminiResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	resp := &pipeline.Response{
		Model:     origModel,
		CreatedAt: time.Now(),
		Usage: pipeline.Usage{
			PromptTokens:     wire.UsageMetadata.PromptTokenCount,
			CompletionTokens: wire.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wire.UsageMetadata.TotalTokenCount,
		},
	}
	if len(wire.Candidates) > 0 {
		cand := wire.Candidates[0]
		resp.FinishReason = cand.FinishReason
		for _, p := range cand.Content.Parts {
			resp.Content += p.Text
		}
	}
	return resp, nil
}

func (geminiCodec) VendorReport(int, []byte) *rcerrors.VendorReport { return nil }

// NewGemini builds a provider for the plain Gemini generateContent API.
func NewGemini(opts Options, model string) *BaseProvider {
	return NewBaseProvider(opts, geminiCodec{}, "/v1beta/models/"+model+":generateContent")
}
