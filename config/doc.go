// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package config loads the gateway's Route Target Pool, Pipeline Config
// and Classification Config from defaults, an optional YAML file, and
// environment variable overrides. Hot-reload is intentionally absent:
// the pool and configs are read-only for the lifetime of a process.
package config
