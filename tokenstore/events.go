package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event is one line of the append-only token-daemon-events.log (§4.6
// step 5).
type Event struct {
	Event     string      `json:"event"` // "token-refresh-success" | "token-refresh-failure"
	Provider  string      `json:"provider"`
	Alias     string      `json:"alias"`
	FilePath  string      `json:"filePath"`
	DurationMs int64      `json:"durationMs"`
	Mode      RefreshMode `json:"mode"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventLog appends JSON-lines events to a single file. Writers append
// under a mutex; the file is opened once and kept for the logger's
// lifetime.
type EventLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenEventLog opens (creating if needed) the event log at path for
// appending.
func OpenEventLog(path string) (*EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: open event log %s: %w", path, err)
	}
	return &EventLog{file: f}, nil
}

// Append writes one event as a single JSON line.
func (l *EventLog) Append(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

// Close releases the underlying file handle.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
