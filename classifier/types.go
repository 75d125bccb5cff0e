// Package classifier implements the request classifier and decision tree
// described in the routing specification: protocol detection, token
// analysis, tool analysis, model tier resolution, feature extraction and
// a deterministic decision tree that yields a named route.
package classifier

// ModelTierName names the two coarse model capability tiers.
type ModelTierName string

const (
	TierBasic    ModelTierName = "basic"
	TierAdvanced ModelTierName = "advanced"
)

// ModelTier describes one capability tier's membership and limits.
type ModelTier struct {
	Models             []string `yaml:"models"`
	MaxTokens          int      `yaml:"maxTokens"`
	SupportedFeatures  []string `yaml:"supportedFeatures"`
}

// ProtocolMapping describes how one wire protocol's requests are shaped.
type ProtocolMapping struct {
	Endpoints       []string `yaml:"endpoints"`
	MessageField    string   `yaml:"messageField"`
	ModelField      string   `yaml:"modelField"`
	ToolsField      string   `yaml:"toolsField"`
	MaxTokensField  string   `yaml:"maxTokensField"`
}

// RoutingDecision is the per-route configuration consulted by the
// decision tree: which tier/threshold/tool-types/priority gate entry into
// that route. Priority is informational; the decision tree's own fixed
// order (§4.1 step 6) decides precedence, not this field.
type RoutingDecision struct {
	ModelTier      ModelTierName `yaml:"modelTier"`
	TokenThreshold int           `yaml:"tokenThreshold"`
	ToolTypes      []string      `yaml:"toolTypes"`
	Priority       int           `yaml:"priority"`
}

// Config is the Classification Config data model from the spec.
type Config struct {
	ProtocolMapping           map[string]ProtocolMapping `yaml:"protocolMapping"`
	ModelTiers                map[ModelTierName]ModelTier `yaml:"modelTiers"`
	RoutingDecisions          map[string]RoutingDecision `yaml:"routingDecisions"`
	ThinkingKeywords          []string                   `yaml:"thinkingKeywords"`
	LongContextThresholdTokens int                       `yaml:"longContextThresholdTokens"`
	ConfidenceThreshold       float64                    `yaml:"confidenceThreshold"`
}

// DefaultConfig returns sane defaults matching the spec's stated
// defaults (100k long-context threshold) and the routes named in the
// glossary.
func DefaultConfig() Config {
	return Config{
		LongContextThresholdTokens: 100000,
		ConfidenceThreshold:        0.5,
		RoutingDecisions: map[string]RoutingDecision{
			"default":     {},
			"longContext": {},
			"thinking":    {},
			"coding":      {},
			"webSearch":   {},
			"tools":       {},
			"vision":      {},
		},
	}
}

// ToolCategory is one of the tool-type buckets the tool analyzer sorts
// detected tool calls/definitions into.
type ToolCategory string

const (
	ToolWebSearch     ToolCategory = "webSearch"
	ToolCodeExecution ToolCategory = "codeExecution"
	ToolFileSearch    ToolCategory = "fileSearch"
	ToolDataAnalysis  ToolCategory = "dataAnalysis"
	ToolGeneral       ToolCategory = "general"
)

// TokenAnalysis is the output of the token-counting step.
type TokenAnalysis struct {
	TotalTokens   int
	MessageTokens int
	SystemTokens  int
	ToolTokens    int
	CounterName   string
}

// ToolAnalysis is the output of the tool-scanning step.
type ToolAnalysis struct {
	HasTools  bool
	Types     map[ToolCategory]int
	Dominant  ToolCategory
}

// ModelTierAnalysis is the output of the model-tier resolution step.
type ModelTierAnalysis struct {
	Tier      ModelTierName
	MaxTokens int
	Matched   bool
}

// Analysis bundles the diagnostic output of every classification step.
type Analysis struct {
	TokenAnalysis     TokenAnalysis
	ToolAnalysis      ToolAnalysis
	ModelTierAnalysis ModelTierAnalysis
}

// Features is the ephemeral, request-scoped feature set the decision tree
// consumes. It is never persisted.
type Features struct {
	Protocol        string
	Endpoint        string
	Model           string
	TotalTokens     int
	HasTools        bool
	ToolTypes       []ToolCategory
	HasImageContent bool
	ThinkingIntent  bool
}

// Result is the Classifier's output.
type Result struct {
	Route      string
	ModelTier  ModelTierName
	Confidence float64 // diagnostic only, never used for selection
	Reasoning  string
	Analysis   Analysis
}

// Request is the minimal input shape the classifier needs, already
// extracted from whatever wire protocol the request arrived in by the
// entry dispatcher (see dispatcher.ExtractFeatureInput).
type Request struct {
	Endpoint string
	Protocol string // optional hint; re-derived from Endpoint if empty
	Model    string
	Messages []tokenizerMessage
	Tools    []ToolDefinition
	HasImage bool
}

// tokenizerMessage avoids importing the tokenizer package's Message type
// directly into the public Request shape while keeping field names
// aligned; classifier.go converts between them.
type tokenizerMessage struct {
	Role    string
	Content string
}

// NewMessage builds a classifier message from a role/content pair.
func NewMessage(role, content string) tokenizerMessage {
	return tokenizerMessage{Role: role, Content: content}
}

// ToolDefinition is a minimal tool-schema shape used for tool analysis:
// its name and description are scanned for category keywords.
type ToolDefinition struct {
	Name        string
	Description string
}
