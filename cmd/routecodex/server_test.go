// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/routecodex/config"
)

func TestExtensionPath_FallsBackWhenKeyAbsent(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, "default.json", extensionPath(cfg, "missing", "default.json"))
}

func TestExtensionPath_UsesConfiguredValue(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extensions["custom"] = "/tmp/custom.json"
	assert.Equal(t, "/tmp/custom.json", extensionPath(cfg, "custom", "default.json"))
}

// NewServer is exercised exactly once in this package: metrics.Collector
// registers its vectors into the default Prometheus registry, so a second
// call within the same test binary would panic on duplicate registration.
func TestNewServer_WiresDispatcherFactoryAndDaemon(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Server.MetricsPort = 0
	cfg.Extensions = map[string]any{
		"tokenHistoryPath":  filepath.Join(dir, "history.json"),
		"tokenEventLogPath": filepath.Join(dir, "events.jsonl"),
		"daemonLeasePath":   filepath.Join(dir, "daemon.lease"),
	}

	srv, err := NewServer(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.NotNil(t, srv.dispatcher)
	assert.NotNil(t, srv.factory)
	assert.NotNil(t, srv.cache)
	assert.NotNil(t, srv.collector)
	assert.NotNil(t, srv.daemon)
}
