// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

// NewDeepSeek builds a DeepSeek provider. DeepSeek is a plain
// API-key-authenticated OpenAI-Chat-compatible endpoint with no
// provider-specific quirks beyond its base URL.
func NewDeepSeek(opts Options) *BaseProvider {
	return NewBaseProvider(opts, &openAICompatCodec{}, "/chat/completions")
}
