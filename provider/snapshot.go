// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// snapshotBucket maps metadata.entryEndpoint onto the directory name
// under ~/.routecodex/codex-samples the request/response pair is filed
// under (§6 "Snapshots").
func snapshotBucket(entryEndpoint string) string {
	if entryEndpoint == "" {
		return "unknown"
	}
	return entryEndpoint
}

// DefaultSnapshotDir resolves ~/.routecodex/codex-samples, falling back to
// a relative path if the home directory can't be resolved.
func DefaultSnapshotDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".routecodex", "codex-samples")
	}
	return filepath.Join(home, ".routecodex", "codex-samples")
}

// snapshotWriter persists the request/response/pair/error JSON blobs a
// provider call produces, one bucket directory per entry protocol.
type snapshotWriter struct {
	dir    string
	logger *zap.Logger
}

func newSnapshotWriter(dir string, logger *zap.Logger) *snapshotWriter {
	if dir == "" {
		dir = DefaultSnapshotDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &snapshotWriter{dir: dir, logger: logger}
}

func (w *snapshotWriter) write(bucket, requestID, suffix string, payload any) {
	dir := filepath.Join(w.dir, snapshotBucket(bucket))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn("snapshot: mkdir failed", zap.Error(err))
		return
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		w.logger.Warn("snapshot: marshal failed", zap.Error(err))
		return
	}
	path := filepath.Join(dir, requestID+"_"+suffix+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		w.logger.Warn("snapshot: write failed", zap.String("path", path), zap.Error(err))
	}
}

func (w *snapshotWriter) writeRequest(bucket, requestID string, body any) {
	w.write(bucket, requestID, "provider-request", body)
}

func (w *snapshotWriter) writeResponse(bucket, requestID string, body any) {
	w.write(bucket, requestID, "provider-response", body)
}

func (w *snapshotWriter) writePair(bucket, requestID string, req, resp any) {
	w.write(bucket, requestID, "provider-pair", map[string]any{
		"request":  req,
		"response": resp,
		"at":       time.Now().Format(time.RFC3339Nano),
	})
}

func (w *snapshotWriter) writeError(bucket, requestID string, err error) {
	w.write(bucket, requestID, "provider-error", map[string]any{
		"error": err.Error(),
		"at":    time.Now().Format(time.RFC3339Nano),
	})
}
