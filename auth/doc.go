// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package auth builds upstream request authentication headers from one
// of three sources: a static API key, an OAuth bearer token (refreshed
// on demand via the oauth package), or a raw token file. A per-request
// credential override can be threaded through a context.Context without
// ever round-tripping through JSON.
package auth
