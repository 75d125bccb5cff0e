package classifier

import (
	"strings"

	"github.com/BaSui01/routecodex/classifier/tokenizer"
	"go.uber.org/zap"
)

// UserPreferences lets a caller hint at tool-type classification when the
// wire protocol doesn't carry enough signal on its own. Currently unused
// by the decision tree directly (spec keeps the tree fully deterministic
// on request features) but threaded through for forward compatibility.
type UserPreferences struct {
	PreferredRoute string
}

// Classifier implements the protocol-detect -> token-analysis ->
// tool-analysis -> model-tier -> feature-extraction -> decision-tree
// pipeline from spec §4.1. It never panics and never returns an error:
// any internal failure degrades to the default route per spec.
type Classifier struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Classifier bound to cfg. A nil logger is replaced with a
// no-op logger.
func New(cfg Config, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{cfg: cfg, logger: logger.With(zap.String("component", "classifier"))}
}

// Classify runs the full pipeline and never throws past this boundary:
// any step failure degrades to the default route with
// reasoning="fallback:classification_error".
func (c *Classifier) Classify(req Request, prefs *UserPreferences) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("classifier panic recovered", zap.Any("panic", r))
			result = c.fallback("fallback:classification_error")
		}
	}()

	protocol := c.detectProtocol(req)

	tokenAnalysis, err := c.analyzeTokens(protocol, req)
	if err != nil {
		c.logger.Warn("token analysis failed, falling back to default route", zap.Error(err))
		return c.fallback("fallback:classification_error")
	}

	toolAnalysis := c.analyzeTools(req)
	tierAnalysis := c.resolveModelTier(req.Model)

	features := Features{
		Protocol:        protocol,
		Endpoint:        req.Endpoint,
		Model:           req.Model,
		TotalTokens:     tokenAnalysis.TotalTokens,
		HasTools:        toolAnalysis.HasTools,
		ToolTypes:       categoriesPresent(toolAnalysis.Types),
		HasImageContent: req.HasImage || hasImageContent(req),
		ThinkingIntent:  c.hasThinkingIntent(req),
	}

	route := c.decide(features)

	return Result{
		Route:      route,
		ModelTier:  tierAnalysis.Tier,
		Confidence: c.confidence(features, route),
		Reasoning:  "decision_tree:" + route,
		Analysis: Analysis{
			TokenAnalysis:     tokenAnalysis,
			ToolAnalysis:      toolAnalysis,
			ModelTierAnalysis: tierAnalysis,
		},
	}
}

func (c *Classifier) fallback(reason string) Result {
	return Result{Route: "default", Reasoning: reason, ModelTier: TierBasic}
}

// detectProtocol implements §4.1 step 1. A caller-supplied Protocol hint
// is returned as is; otherwise a protocolMapping entry one of whose
// endpoints[] is a substring of the request endpoint wins. ProtocolMapping
// is a map, so when several entries match, which one is returned is not
// defined. With no match the result is "" and classification continues.
func (c *Classifier) detectProtocol(req Request) string {
	if req.Protocol != "" {
		return req.Protocol
	}
	for proto, mapping := range c.cfg.ProtocolMapping {
		for _, ep := range mapping.Endpoints {
			if ep != "" && strings.Contains(req.Endpoint, ep) {
				return proto
			}
		}
	}
	return ""
}

// analyzeTokens implements §4.1 step 2. If the resolved counter cannot
// process the payload, the error propagates so the caller falls back to
// default per spec (the heuristic counter never errors, so this only
// trips when a registered BPE table itself fails to initialize).
func (c *Classifier) analyzeTokens(protocol string, req Request) (TokenAnalysis, error) {
	counter := tokenizer.ForModel(req.Model)

	msgs := make([]tokenizer.Message, 0, len(req.Messages))
	systemTokens, messageTokens := 0, 0
	for _, m := range req.Messages {
		msgs = append(msgs, tokenizer.Message{Role: m.Role, Content: m.Content})
	}

	total, err := counter.CountMessages(msgs)
	if err != nil {
		return TokenAnalysis{}, err
	}

	for _, m := range req.Messages {
		n, cerr := counter.CountText(m.Content)
		if cerr != nil {
			return TokenAnalysis{}, cerr
		}
		if m.Role == "system" {
			systemTokens += n
		} else {
			messageTokens += n
		}
	}

	toolTokens := 0
	for _, t := range req.Tools {
		n, terr := counter.CountText(t.Name + " " + t.Description)
		if terr != nil {
			return TokenAnalysis{}, terr
		}
		toolTokens += n
	}

	return TokenAnalysis{
		TotalTokens:   total,
		MessageTokens: messageTokens,
		SystemTokens:  systemTokens,
		ToolTokens:    toolTokens,
		CounterName:   counter.Name(),
	}, nil
}

// toolKeywords maps a category to its detection keywords, scanned
// case-insensitively against a tool's name and description per §4.1 step 3.
var toolKeywords = map[ToolCategory][]string{
	ToolWebSearch:     {"web_search", "websearch", "search", "browse", "google"},
	ToolCodeExecution: {"code_execution", "execute", "python", "shell", "interpreter", "run_code"},
	ToolFileSearch:    {"file_search", "file", "edit", "read_file", "write_file"},
	ToolDataAnalysis:  {"data_analysis", "analyze", "dataframe", "sql", "chart"},
}

// analyzeTools implements §4.1 step 3.
func (c *Classifier) analyzeTools(req Request) ToolAnalysis {
	types := map[ToolCategory]int{}
	for _, t := range req.Tools {
		cat := categorize(t.Name + " " + t.Description)
		types[cat]++
	}

	dominant := ToolGeneral
	best := 0
	for cat, n := range types {
		if n > best {
			best = n
			dominant = cat
		}
	}

	return ToolAnalysis{
		HasTools: len(req.Tools) > 0,
		Types:    types,
		Dominant: dominant,
	}
}

func categorize(text string) ToolCategory {
	lower := strings.ToLower(text)
	for _, cat := range []ToolCategory{ToolWebSearch, ToolCodeExecution, ToolFileSearch, ToolDataAnalysis} {
		for _, kw := range toolKeywords[cat] {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return ToolGeneral
}

func categoriesPresent(types map[ToolCategory]int) []ToolCategory {
	out := make([]ToolCategory, 0, len(types))
	for cat, n := range types {
		if n > 0 {
			out = append(out, cat)
		}
	}
	return out
}

// resolveModelTier implements §4.1 step 4: substring match against
// modelTiers.{basic,advanced}.models[]; unmatched defaults to basic.
func (c *Classifier) resolveModelTier(model string) ModelTierAnalysis {
	for _, tierName := range []ModelTierName{TierAdvanced, TierBasic} {
		tier, ok := c.cfg.ModelTiers[tierName]
		if !ok {
			continue
		}
		for _, m := range tier.Models {
			if m != "" && strings.Contains(model, m) {
				return ModelTierAnalysis{Tier: tierName, MaxTokens: tier.MaxTokens, Matched: true}
			}
		}
	}
	return ModelTierAnalysis{Tier: TierBasic, Matched: false}
}

// hasImageContent implements part of §4.1 step 5: any message is flagged
// by the caller via req.HasImage (the dispatcher inspects protocol-native
// content parts for a type containing "image" or an image_url.url before
// calling in); this helper is a defensive no-op hook for future extension.
func hasImageContent(req Request) bool {
	return req.HasImage
}

// hasThinkingIntent implements §4.1 step 5: case-insensitive substring
// match of any configured thinking keyword against the concatenation of
// user-role message text.
func (c *Classifier) hasThinkingIntent(req Request) bool {
	if len(c.cfg.ThinkingKeywords) == 0 {
		return false
	}
	var sb strings.Builder
	for _, m := range req.Messages {
		if m.Role == "user" {
			sb.WriteString(m.Content)
			sb.WriteString(" ")
		}
	}
	text := strings.ToLower(sb.String())
	for _, kw := range c.cfg.ThinkingKeywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (c *Classifier) confidence(f Features, route string) float64 {
	// Diagnostic only, per spec never used for selection. A simple
	// heuristic: more signal (tokens counted, tools detected) -> higher
	// reported confidence.
	score := 0.5
	if f.TotalTokens > 0 {
		score += 0.2
	}
	if f.HasTools {
		score += 0.15
	}
	if route != "default" {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}
	return score
}
