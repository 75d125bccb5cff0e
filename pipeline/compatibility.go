package pipeline

import (
	"context"
	"strings"
)

// Rewriter adjusts a Request in place before it reaches the Provider
// stage. Grounded on the teacher's middleware.RequestRewriter /
// RewriterChain shape, generalized from a single OpenAI-only rewriter
// chain to one parameterized by a provider-family Profile.
type Rewriter interface {
	Name() string
	Rewrite(ctx context.Context, req *Request) (*Request, error)
}

// Profile names the provider-family shape adjustments a Compatibility
// stage applies. Each upstream family in spec §4.4 gets one.
type Profile string

const (
	ProfileGLM       Profile = "glm"
	ProfileQwen      Profile = "qwen"
	ProfileIFlow     Profile = "iflow"
	ProfileDeepSeek  Profile = "deepseek"
	ProfileGemini    Profile = "gemini"
	ProfileGeminiCLI Profile = "gemini-cli"
	ProfileOpenAI    Profile = "openai"
	ProfileLMStudio  Profile = "lmstudio"
)

// ShapeFilter is the declarative strip/rename list loaded from a
// shape-filters.<profile>.json file (spec §4.3).
type ShapeFilter struct {
	StripFields  []string          `json:"stripFields,omitempty"`
	RenameFields map[string]string `json:"renameFields,omitempty"`
}

// Compatibility runs the provider-family Rewriter chain, then the
// declarative ShapeFilter, matching the spec's two-part "field mapping +
// shape-filter JSON" design.
type Compatibility struct {
	Profile    Profile
	Rewriters  []Rewriter
	ShapeFilter *ShapeFilter
}

// NewCompatibility builds the Compatibility stage for profile, wiring in
// the fixed per-family rewriters spec §4.4 requires.
func NewCompatibility(profile Profile, filter *ShapeFilter) *Compatibility {
	c := &Compatibility{Profile: profile, ShapeFilter: filter}
	c.Rewriters = append(c.Rewriters, &emptyToolsCleaner{})
	switch profile {
	case ProfileGLM:
		c.Rewriters = append(c.Rewriters, &glmRoleNormalizer{}, &glmContentFlattener{})
	case ProfileQwen:
		c.Rewriters = append(c.Rewriters, &qwenPayloadAllowList{})
	}
	return c
}

// Execute runs every rewriter in order, aborting on the first error —
// mirroring middleware.RewriterChain.Execute.
func (c *Compatibility) Execute(ctx context.Context, req *Request) (*Request, error) {
	var err error
	for _, r := range c.Rewriters {
		req, err = r.Rewrite(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

// emptyToolsCleaner clears ToolChoice when Tools is empty, avoiding the
// 400 several OpenAI-compatible upstreams return when tool_choice is set
// without a tools array. Grounded on middleware.EmptyToolsCleaner.
type emptyToolsCleaner struct{}

func (emptyToolsCleaner) Name() string { return "empty_tools_cleaner" }

func (emptyToolsCleaner) Rewrite(_ context.Context, req *Request) (*Request, error) {
	if len(req.Tools) == 0 {
		req.ToolChoice = nil
	}
	return req, nil
}

// glmRoleNormalizer maps the unsupported "tool" role to "user", per
// spec §4.4's GLM contract (roles restricted to system|user|assistant).
type glmRoleNormalizer struct{}

func (glmRoleNormalizer) Name() string { return "glm_role_normalizer" }

func (glmRoleNormalizer) Rewrite(_ context.Context, req *Request) (*Request, error) {
	for i := range req.Messages {
		if req.Messages[i].Role == "tool" {
			req.Messages[i].Role = "user"
		}
	}
	return req, nil
}

// glmContentFlattener serializes tool_calls into "[tool_call:<name>]
// <args>" lines, since GLM only accepts string message content.
type glmContentFlattener struct{}

func (glmContentFlattener) Name() string { return "glm_content_flattener" }

func (glmContentFlattener) Rewrite(_ context.Context, req *Request) (*Request, error) {
	for i := range req.Messages {
		m := &req.Messages[i]
		if len(m.ToolCalls) == 0 {
			continue
		}
		var sb strings.Builder
		if m.Content != "" {
			sb.WriteString(m.Content)
			sb.WriteByte('\n')
		}
		for _, tc := range m.ToolCalls {
			sb.WriteString("[tool_call:")
			sb.WriteString(tc.Name)
			sb.WriteString("] ")
			sb.WriteString(tc.Arguments)
			sb.WriteByte('\n')
		}
		m.Content = strings.TrimRight(sb.String(), "\n")
		m.ToolCalls = nil
	}
	return req, nil
}

// qwenPayloadAllowList is applied at serialization time by the Qwen
// provider (the allow-list operates on the wire map, not the canonical
// Request) — kept here as a documented no-op so the rewriter chain
// still names the concern; see provider/qwen.go's qwenAllowedFields.
type qwenPayloadAllowList struct{}

func (qwenPayloadAllowList) Name() string { return "qwen_payload_allow_list" }

func (qwenPayloadAllowList) Rewrite(_ context.Context, req *Request) (*Request, error) {
	return req, nil
}

// ApplyShapeFilter strips and renames fields in a wire-bound map per the
// Compatibility stage's ShapeFilter, matching spec §4.3's
// "unsupported-field stripping" step for parameters that vary by
// profile (max_tokens / maxTokens / max_output_tokens families).
func (c *Compatibility) ApplyShapeFilter(body map[string]any) map[string]any {
	if c.ShapeFilter == nil {
		return body
	}
	for _, field := range c.ShapeFilter.StripFields {
		delete(body, field)
	}
	for from, to := range c.ShapeFilter.RenameFields {
		if v, ok := body[from]; ok {
			body[to] = v
			delete(body, from)
		}
	}
	return body
}
