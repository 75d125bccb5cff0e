package classifier

// Feature: request-classification, Property: decision tree priority order
// is fixed and image content always wins regardless of token count or tool
// mix, as long as the vision route is configured.

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDecide_VisionAlwaysWinsWhenConfigured(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := New(testConfig(), nil)

		tokens := rapid.IntRange(0, 500000).Draw(rt, "tokens")
		hasTools := rapid.Bool().Draw(rt, "hasTools")
		thinking := rapid.Bool().Draw(rt, "thinking")
		toolType := rapid.SampledFrom([]ToolCategory{
			ToolWebSearch, ToolCodeExecution, ToolFileSearch, ToolDataAnalysis, ToolGeneral,
		}).Draw(rt, "toolType")

		f := Features{
			TotalTokens:     tokens,
			HasTools:        hasTools,
			ToolTypes:       []ToolCategory{toolType},
			HasImageContent: true,
			ThinkingIntent:  thinking,
		}

		route := c.decide(f)
		assert.Equal(rt, "vision", route)
	})
}

func TestDecide_LongContextBeatsToolsAndThinking(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := New(testConfig(), nil)

		tokens := rapid.IntRange(100000, 1000000).Draw(rt, "tokens")
		hasTools := rapid.Bool().Draw(rt, "hasTools")
		thinking := rapid.Bool().Draw(rt, "thinking")

		f := Features{
			TotalTokens:     tokens,
			HasTools:        hasTools,
			ThinkingIntent:  thinking,
			HasImageContent: false,
		}

		route := c.decide(f)
		assert.Equal(rt, "longContext", route)
	})
}

func TestDecide_OrderIsFixed(t *testing.T) {
	c := New(testConfig(), nil)

	cases := []struct {
		name string
		f    Features
		want string
	}{
		{"vision beats everything", Features{HasImageContent: true, TotalTokens: 200000, HasTools: true, ThinkingIntent: true, ToolTypes: []ToolCategory{ToolCodeExecution}}, "vision"},
		{"longContext beats thinking/tools", Features{TotalTokens: 200000, ThinkingIntent: true, HasTools: true, ToolTypes: []ToolCategory{ToolWebSearch}}, "longContext"},
		{"thinking beats coding/tools", Features{ThinkingIntent: true, HasTools: true, ToolTypes: []ToolCategory{ToolCodeExecution}}, "thinking"},
		{"coding beats webSearch", Features{ToolTypes: []ToolCategory{ToolCodeExecution, ToolWebSearch}, HasTools: true}, "coding"},
		{"fileSearch also routes to coding", Features{ToolTypes: []ToolCategory{ToolFileSearch}, HasTools: true}, "coding"},
		{"webSearch beats generic tools", Features{ToolTypes: []ToolCategory{ToolWebSearch, ToolGeneral}, HasTools: true}, "webSearch"},
		{"generic tool falls to tools", Features{ToolTypes: []ToolCategory{ToolGeneral}, HasTools: true}, "tools"},
		{"nothing matches falls to default", Features{}, "default"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.decide(tc.f))
		})
	}
}

func TestDecide_DefaultAbsentFallsToFirstConfigured(t *testing.T) {
	cfg := testConfig()
	delete(cfg.RoutingDecisions, "default")
	cfg.RoutingDecisions = map[string]RoutingDecision{"tools": {}}
	c := New(cfg, nil)

	route := c.decide(Features{})
	assert.Equal(t, "tools", route)
}
