// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

// NewOpenAI builds a provider talking to OpenAI's own Chat Completions
// endpoint — the reference shape every other *-compat adapter is
// measured against.
func NewOpenAI(opts Options) *BaseProvider {
	return NewBaseProvider(opts, &openAICompatCodec{}, "/chat/completions")
}
