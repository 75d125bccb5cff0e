// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package dispatcher implements the gateway's HTTP entry surface: it
// decodes one of the four supported wire protocols, classifies the
// request into a route, resolves a concrete upstream target through the
// load balancer, looks up (or builds) that target's cached pipeline, runs
// the request through it and renders the response back in the caller's
// wire protocol — as a single JSON body or as a Server-Sent Events
// stream.
package dispatcher
