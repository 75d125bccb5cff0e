// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package router turns a classifier route name into a concrete upstream
// target via a two-layer round-robin: provider.model groups rotate on one
// cursor, and the keys within a group rotate on their own.
package router
