package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExpiryBuffer is the window (§4.5 step 2) within which a token is
// considered "expiring" even though it has not yet hit ExpiresAt.
const ExpiryBuffer = 60 * time.Second

// LoadPayload reads and parses a token file, migrating the legacy
// expiry_date field into ExpiresAt when the latter is absent. Returns the
// file's mtime alongside the payload since history tracking keys off it.
func LoadPayload(path string) (*Payload, time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("tokenstore: read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("tokenstore: stat %s: %w", path, err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, time.Time{}, fmt.Errorf("tokenstore: parse %s: %w", path, err)
	}
	if p.ExpiresAt == 0 && p.ExpiryDate != 0 {
		p.ExpiresAt = p.ExpiryDate
	}
	return &p, info.ModTime(), nil
}

// SavePayload atomically replaces path's contents with p.
func SavePayload(path string, p *Payload) error {
	return atomicWriteJSON(path, p)
}

// atomicWriteJSON writes v to path via write-temp-then-rename: a sibling
// temp file in the same directory, renamed over the target once fully
// written. Rename within one filesystem is atomic, which is what gives
// every reader a consistent view even if it races with a concurrent
// writer, and is the single-writer-per-path mechanism both token
// payloads and the history journal rely on.
func atomicWriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("tokenstore: mkdir for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenstore: marshal %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("tokenstore: create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: write temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: close temp for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("tokenstore: chmod temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenstore: rename into %s: %w", path, err)
	}
	return nil
}

// Evaluate derives a State from a payload at time now, per §4.5 step 2's
// expiry buffer.
func Evaluate(p *Payload, now time.Time) State {
	if p.AccessToken == "" && p.APIKey == "" {
		return State{Status: StatusInvalid}
	}
	if p.ExpiresAt == 0 {
		return State{Status: StatusNoRefresh}
	}

	expiresAt := time.UnixMilli(p.ExpiresAt)
	msUntil := expiresAt.Sub(now).Milliseconds()

	status := StatusValid
	switch {
	case expiresAt.Before(now):
		status = StatusExpired
	case expiresAt.Sub(now) < ExpiryBuffer:
		status = StatusExpiring
	}
	return State{Status: status, ExpiresAt: &expiresAt, MsUntilExpiry: &msUntil}
}

// AuthHeaderValue picks the credential that wins for the Authorization
// header per the data model invariant: apiKey, when present, takes
// precedence over access_token.
func AuthHeaderValue(p *Payload) (scheme, value string) {
	if p.APIKey != "" {
		return "Bearer", p.APIKey
	}
	tokenType := p.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType, p.AccessToken
}
