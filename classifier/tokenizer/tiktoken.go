package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// modelEncodings maps an OpenAI-wire model name (or prefix) to its BPE
// encoding. GLM, Qwen, DeepSeek and iFlow all speak the OpenAI-Chat wire
// shape, so their requests count accurately against these tables too.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
	"glm-4":         "cl100k_base",
	"qwen":          "cl100k_base",
	"deepseek":      "cl100k_base",
}

// TiktokenCounter adapts tiktoken-go's BPE encoder into a Counter.
type TiktokenCounter struct {
	model    string
	encoding string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktokenCounter builds a BPE-backed counter for model, resolving its
// encoding by exact match then longest registered prefix, defaulting to
// cl100k_base when nothing matches.
func NewTiktokenCounter(model string) *TiktokenCounter {
	enc, ok := modelEncodings[model]
	if !ok {
		best := 0
		for prefix, e := range modelEncodings {
			if len(prefix) > best && len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				enc = e
				best = len(prefix)
				ok = true
			}
		}
	}
	if !ok {
		enc = "cl100k_base"
	}
	return &TiktokenCounter{model: model, encoding: enc}
}

func (t *TiktokenCounter) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenCounter) CountText(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// CountMessages applies the standard OpenAI-Chat per-message framing
// overhead: 4 tokens of role/separator framing per message, plus 3 for
// the trailing assistant-priming tokens.
func (t *TiktokenCounter) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := 0
	for _, m := range messages {
		total += 4
		total += len(t.enc.Encode(m.Content, nil, nil))
		total += len(t.enc.Encode(m.Role, nil, nil))
	}
	total += 3
	return total, nil
}

func (t *TiktokenCounter) Name() string { return fmt.Sprintf("tiktoken[%s]", t.encoding) }

// RegisterDefaults registers a TiktokenCounter for every model prefix this
// gateway routes by default. Called once from gateway startup.
func RegisterDefaults() {
	for model := range modelEncodings {
		Register(model, NewTiktokenCounter(model))
	}
}
