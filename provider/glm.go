// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

// glmReportCodes maps Zhipu/GLM's business-error codes to operator-facing
// hints (§4.4 "business-code taxonomy").
var glmReportCodes = map[string]string{
	"1210": "request content triggered GLM's safety filter; rephrase the prompt",
	"1213": "GLM account balance is insufficient to complete the request",
	"1302": "GLM rate limit exceeded; reduce request concurrency or retry after a delay",
	"1303": "GLM concurrency limit exceeded for this API key",
	"1113": "GLM model does not support the requested feature (e.g. tool calling)",
}

// NewGLM builds a GLM provider. GLM is OpenAI-Chat-shaped on the wire;
// role restriction to system|user|assistant and content flattening are
// already applied upstream by the pipeline's Compatibility stage
// (ProfileGLM), so the codec here only needs the response/business-code
// half of the contract.
func NewGLM(opts Options) *BaseProvider {
	codec := &openAICompatCodec{ReportCodes: glmReportCodes}
	bp := NewBaseProvider(opts, codec, "/chat/completions")
	return bp
}
