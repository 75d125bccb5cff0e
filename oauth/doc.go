// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package oauth implements the OAuth Token Lifecycle: device-code and
// authorization-code (with PKCE) acquisition flows built on
// golang.org/x/oauth2, refresh-with-retry, and the
// ensureValidOAuthToken / handleUpstreamInvalidOAuthToken entry points
// the providers and the refresh daemon share.
package oauth
