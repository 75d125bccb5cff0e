// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package dispatcher

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/routecodex/internal/rcerrors"
	"github.com/BaSui01/routecodex/pipeline"
)

// Routes builds the HTTP entry surface: one handler per wire protocol
// plus the process healthz probe. The metrics surface is wired onto its
// own listener by the caller (§6's server/metrics port split), not here.
func (d *Dispatcher) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", d.handleEntry(pipeline.ProtocolOpenAIChat, "/v1/chat/completions"))
	mux.HandleFunc("/v1/responses", d.handleEntry(pipeline.ProtocolOpenAIResponses, "/v1/responses"))
	mux.HandleFunc("/v1/messages", d.handleEntry(pipeline.ProtocolAnthropic, "/v1/messages"))
	mux.HandleFunc("/v1beta/models/", d.handleGemini)
	mux.HandleFunc("/healthz", d.handleHealthz)
	return mux
}

func (d *Dispatcher) handleEntry(protocol, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.serve(w, r, protocol, endpoint, "", nil)
	}
}

// handleGemini parses the Gemini entry's path-encoded action
// (":generateContent" / ":streamGenerateContent") since Go's ServeMux
// wildcard segments cannot match a literal suffix within a segment.
func (d *Dispatcher) handleGemini(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1beta/models/")
	modelName, action, ok := strings.Cut(path, ":")
	if !ok || modelName == "" {
		http.NotFound(w, r)
		return
	}
	stream := action == "streamGenerateContent"
	endpoint := fmt.Sprintf("/v1beta/models/{model}:%s", action)
	d.serve(w, r, pipeline.ProtocolGemini, endpoint, modelName, &stream)
}

func (d *Dispatcher) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// serve runs the full request→route→pipeline→response chain. modelHint,
// when set, overrides the wire-decoded model (the Gemini entry names the
// model in the URL, not the body). forceStream overrides the
// body-decoded stream flag for entries (Gemini) whose streaming mode is
// selected by URL action rather than a request field.
func (d *Dispatcher) serve(w http.ResponseWriter, r *http.Request, protocol, endpoint string, modelHint string, forceStream *bool) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		if d.metrics != nil {
			d.metrics.RecordHTTPRequest(endpoint, status, time.Since(start))
		}
	}()

	if r.Method != http.MethodPost {
		status = writeError(w, rcerrors.New(rcerrors.TypeConfig, "METHOD_NOT_ALLOWED", "only POST is supported").WithStatus(http.StatusMethodNotAllowed))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		status = writeError(w, rcerrors.New(rcerrors.TypeConfig, "BAD_REQUEST", "failed to read request body").WithStatus(http.StatusBadRequest).WithCause(err))
		return
	}

	preq, err := d.sw.FromEntry(protocol, body)
	if err != nil {
		status = writeError(w, rcerrors.New(rcerrors.TypeConfig, "DECODE_ERROR", err.Error()).WithStatus(http.StatusBadRequest))
		return
	}

	if modelHint != "" {
		preq.Model = modelHint
		preq.OrigModel = modelHint
	}
	// FromEntry's wire structs carry no metadata field, so any
	// caller-supplied metadata never survives decoding — the
	// entryEndpoint tag below is the only metadata that reaches the
	// pipeline, satisfying §6's "strip user metadata, inject
	// entryEndpoint" rule without an explicit strip step.
	if preq.Metadata == nil {
		preq.Metadata = make(map[string]any)
	}
	preq.Metadata["entryEndpoint"] = endpoint

	wantStream := preq.Stream
	if forceStream != nil {
		wantStream = *forceStream
	}

	featureReq := ExtractFeatureInput(endpoint, protocol, preq)
	result := d.classifier.Classify(featureReq, nil)
	if d.metrics != nil {
		d.metrics.RecordRouteDecision(result.Route)
	}

	target, err := d.balancer.Select(result.Route, preq.Model)
	if err != nil {
		rerr := rcerrors.New(rcerrors.TypeConfig, "NO_TARGETS", err.Error()).WithStatus(http.StatusServiceUnavailable)
		if wantStream {
			status = writeSSEError(w, rerr, false)
		} else {
			status = writeError(w, rerr)
		}
		return
	}
	if d.metrics != nil {
		d.metrics.RecordLBSelection(result.Route, target.ProviderID, target.ModelID, preq.Model != "" && preq.Model == target.ModelID)
	}

	pl, err := d.pipelineFor(target)
	if err != nil {
		rerr := rcerrors.New(rcerrors.TypeConfig, "PIPELINE_BUILD_FAILED", err.Error()).WithStatus(http.StatusInternalServerError)
		if wantStream {
			status = writeSSEError(w, rerr, false)
		} else {
			status = writeError(w, rerr)
		}
		return
	}

	// The pipeline-configured model overrides whatever the caller sent
	// on the wire; OrigModel is restored onto the response by the
	// provider codec so the caller still sees their own model name back.
	preq.Model = target.ModelID

	resp, err := pl.Handle(r.Context(), preq)
	if err != nil {
		rerr := asRCError(err)
		if wantStream {
			status = writeSSEError(w, rerr, false)
		} else {
			status = writeError(w, rerr)
		}
		return
	}

	if wantStream {
		streamResponse(w, protocol, resp)
		return
	}

	wireBody, err := d.sw.ToEntry(protocol, resp)
	if err != nil {
		status = writeError(w, rcerrors.New(rcerrors.TypeUnknown, "ENCODE_ERROR", err.Error()).WithStatus(http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(wireBody)
}
