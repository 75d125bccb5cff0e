package tokenstore

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// historyFile is the on-disk shape of token-daemon-history.json (§6).
type historyFile struct {
	Version int                          `json:"version"`
	Tokens  map[string]*HistoryAggregate `json:"tokens"`
}

// History is the persisted, per-token-key refresh history journal,
// shared between the gateway and the refresh daemon via the same
// single-writer-per-path discipline as token payloads.
type History struct {
	mu     sync.Mutex
	path   string
	tokens map[string]*HistoryAggregate
}

// OpenHistory loads the history file at path, starting from an empty
// journal if it doesn't exist yet.
func OpenHistory(path string) (*History, error) {
	h := &History{path: path, tokens: map[string]*HistoryAggregate{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, err
	}

	var f historyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Tokens != nil {
		h.tokens = f.Tokens
	}
	return h, nil
}

// Get returns a copy of the aggregate for key, or the zero value if
// unseen.
func (h *History) Get(key string) HistoryAggregate {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.tokens[key]; ok {
		return *a
	}
	return HistoryAggregate{}
}

// RecordRefreshResult applies one refresh attempt's outcome to key's
// aggregate and persists the journal, maintaining the invariants from
// §3: a success resets failureStreak and clears suspension; autoSuspended
// may only be set by an auto-mode failure once failureStreak reaches
// MaxAutoFailures with a known token mtime.
func (h *History) RecordRefreshResult(key string, mode RefreshMode, success bool, durationMs int64, tokenMtime *time.Time) HistoryAggregate {
	h.mu.Lock()
	defer h.mu.Unlock()

	a, ok := h.tokens[key]
	if !ok {
		a = &HistoryAggregate{}
		h.tokens[key] = a
	}

	a.TotalAttempts++
	a.LastAttemptAt = time.Now()
	a.LastDurationMs = durationMs
	a.LastMode = mode
	if tokenMtime != nil {
		a.LastTokenMtime = tokenMtime
	}

	if success {
		a.RefreshSuccesses++
		a.LastResult = "success"
		a.FailureStreak = 0
		a.AutoSuspended = false
		a.SuspendedAt = nil
	} else {
		a.RefreshFailures++
		a.LastResult = "failure"
		if mode == ModeAuto {
			a.FailureStreak++
			if a.FailureStreak >= MaxAutoFailures && a.LastTokenMtime != nil {
				a.AutoSuspended = true
				now := time.Now()
				a.SuspendedAt = &now
			}
		}
	}

	// Manual refreshes never increment the failure streak, and a manual
	// success always clears suspension even if it arrived mid-streak.
	if mode == ModeManual && success {
		a.FailureStreak = 0
		a.AutoSuspended = false
		a.SuspendedAt = nil
	}

	h.persistLocked()
	return *a
}

// ClearSuspension clears a token's auto-suspension without touching its
// streak counters, used when the daemon observes the on-disk mtime has
// advanced (the user re-authorized out of band).
func (h *History) ClearSuspension(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.tokens[key]; ok {
		a.AutoSuspended = false
		a.SuspendedAt = nil
		h.persistLocked()
	}
}

func (h *History) persistLocked() {
	_ = atomicWriteJSON(h.path, historyFile{Version: 1, Tokens: h.tokens})
}
