// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

// NewLMStudio builds a provider for a local LM Studio instance: the same
// OpenAI-Chat wire shape, no authentication beyond whatever static header
// the operator configured, and typically a loopback base URL
// (http://127.0.0.1:1234/v1).
func NewLMStudio(opts Options) *BaseProvider {
	return NewBaseProvider(opts, &openAICompatCodec{}, "/chat/completions")
}
