// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package provider

import (
	"encoding/json"
	"sync"

	"github.com/BaSui01/routecodex/internal/rcerrors"
	"github.com/BaSui01/routecodex/pipeline"
	"github.com/google/uuid"
)

// sessionKey identifies one (alias, sessionId) pair for Gemini-CLI's
// signature cache.
type sessionKey struct {
	alias     string
	sessionID string
}

// signatureCache caches the request signature Gemini-CLI/Antigravity
// expects to see echoed across turns of the same session, keyed by
// (alias, sessionId) per §4.4.
type signatureCache struct {
	mu   sync.Mutex
	vals map[sessionKey]string
}

func newSignatureCache() *signatureCache {
	return &signatureCache{vals: make(map[sessionKey]string)}
}

func (c *signatureCache) get(alias, sessionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vals[sessionKey{alias, sessionID}]
	return v, ok
}

func (c *signatureCache) put(alias, sessionID, signature string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[sessionKey{alias, sessionID}] = signature
}

// geminiCLICodec wraps geminiCodec's request/response in the Cloud-Code-
// Assist envelope Gemini-CLI and Antigravity require: {project, request,
// requestId} in, {response: GeminiResponse} out.
type geminiCLICodec struct {
	inner       geminiCodec
	antigravity bool
	projectID   func() string
	sigCache    *signatureCache
	alias       string
	sessionID   string
}

type cloudCodeRequest struct {
	Project   string          `json:"project"`
	RequestID string          `json:"requestId"`
	Request   json.RawMessage `json:"request"`
	Signature string          `json:"signature,omitempty"`
}

type cloudCodeResponse struct {
	Response  geminiResponse `json:"response"`
	Signature string         `json:"signature,omitempty"`
}

func (c *geminiCLICodec) EncodeRequest(req *pipeline.Request, model string, maxTokens int) ([]byte, error) {
	inner, err := c.inner.EncodeRequest(req, model, maxTokens)
	if err != nil {
		return nil, err
	}
	prefix := "req"
	if c.antigravity {
		prefix = "agent"
	}
	out := cloudCodeRequest{
		Project:   c.projectID(),
		RequestID: prefix + "-" + uuid.NewString(),
		Request:   inner,
	}
	if c.sigCache != nil {
		if sig, ok := c.sigCache.get(c.alias, c.sessionID); ok {
			out.Signature = sig
		}
	}
	return json.Marshal(out)
}

func (c *geminiCLICodec) DecodeResponse(body []byte, origModel string) (*pipeline.Response, error) {
	var wire cloudCodeResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	if c.sigCache != nil && wire.Signature != "" {
		c.sigCache.put(c.alias, c.sessionID, wire.Signature)
	}
	respBody, err := json.Marshal(wire.Response)
	if err != nil {
		return nil, err
	}
	return c.inner.DecodeResponse(respBody, origModel)
}

func (c *geminiCLICodec) VendorReport(statusCode int, body []byte) *rcerrors.VendorReport {
	return c.inner.VendorReport(statusCode, body)
}

// sharedGeminiCLISignatureCache is process-wide: every Gemini-CLI/
// Antigravity provider instance shares one cache keyed by (alias,
// sessionId), matching the spec's "across requests" scope.
var sharedGeminiCLISignatureCache = newSignatureCache()

// NewGeminiCLI builds a Gemini-CLI (or, with antigravity=true,
// Antigravity) provider against the Cloud-Code-Assist internal API.
func NewGeminiCLI(opts Options, alias, sessionID string, antigravity bool, projectID func() string) *BaseProvider {
	codec := &geminiCLICodec{
		antigravity: antigravity,
		projectID:   projectID,
		sigCache:    sharedGeminiCLISignatureCache,
		alias:       alias,
		sessionID:   sessionID,
	}
	return NewBaseProvider(opts, codec, "/v1internal/:generateContent")
}
