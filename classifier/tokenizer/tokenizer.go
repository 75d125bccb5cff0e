// Package tokenizer implements the Classifier's token analysis step:
// protocol-agnostic message token counting, backed by a real BPE encoder
// where one is registered and a CJK-aware character estimator otherwise.
package tokenizer

import "sync"

// Message is the minimal shape token counting needs: a role and flattened
// text content. Callers extract this from whatever wire protocol the
// request arrived in before counting.
type Message struct {
	Role    string
	Content string
}

// Counter counts tokens for classification purposes. It never panics;
// callers that cannot obtain a count should treat that as a classifier
// failure and fail over to the default route per spec.
type Counter interface {
	// CountText counts the tokens in a single text string.
	CountText(text string) (int, error)
	// CountMessages counts total tokens across a message slice, including
	// the implementation's per-message framing overhead.
	CountMessages(messages []Message) (int, error)
	// Name identifies the counter for diagnostics.
	Name() string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Counter{}
	fallback   Counter = NewHeuristicCounter("", 0)
)

// Register associates a model name (or prefix) with a Counter.
func Register(model string, c Counter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[model] = c
}

// ForModel returns the best registered Counter for model, falling back to
// the heuristic estimator when no BPE table is registered. It never
// returns nil.
func ForModel(model string) Counter {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if c, ok := registry[model]; ok {
		return c
	}
	for prefix, c := range registry {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return c
		}
	}
	return fallback
}
