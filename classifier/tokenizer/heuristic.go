package tokenizer

import "unicode/utf8"

// HeuristicCounter estimates token counts by character ratio when no BPE
// table is registered for a model, or for native wire shapes (Anthropic,
// Gemini) that don't map cleanly onto an OpenAI encoding. It distinguishes
// CJK runes (~1.5 chars/token) from the rest (~4 chars/token).
type HeuristicCounter struct {
	model string
}

// NewHeuristicCounter builds a fallback estimator. The int argument is
// ignored and model is only stored; Name() always reports "heuristic".
func NewHeuristicCounter(model string, _ int) *HeuristicCounter {
	return &HeuristicCounter{model: model}
}

func (h *HeuristicCounter) CountText(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	est := float64(cjk)/1.5 + float64(total-cjk)/4.0
	if est < 1 {
		est = 1
	}
	return int(est), nil
}

func (h *HeuristicCounter) CountMessages(messages []Message) (int, error) {
	total := 0
	for _, m := range messages {
		n, err := h.CountText(m.Content)
		if err != nil {
			return 0, err
		}
		total += n + 4
	}
	return total + 3, nil
}

func (h *HeuristicCounter) Name() string { return "heuristic" }

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF)
}
