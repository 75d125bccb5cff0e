// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package dispatcher

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/BaSui01/routecodex/internal/rcerrors"
)

// asRCError unwraps err into an *rcerrors.Error, classifying anything
// else (a bare Go error escaping some non-provider failure) as an
// unknown, non-retryable 500.
func asRCError(err error) *rcerrors.Error {
	if e, ok := rcerrors.As(err); ok {
		return e
	}
	return rcerrors.New(rcerrors.TypeUnknown, "UNKNOWN", err.Error()).WithStatus(http.StatusInternalServerError)
}

// writeError renders the standard JSON error envelope
// {error:{message,type,code,statusCode}} from §7.
func writeError(w http.ResponseWriter, e *rcerrors.Error) int {
	status := e.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message":    e.Message,
			"type":       e.Type,
			"code":       e.Code,
			"statusCode": status,
		},
	})
	return status
}

// writeSSEError starts (or continues) an SSE response and emits the
// terminal "event: error" frame §7 requires before the stream closes.
func writeSSEError(w http.ResponseWriter, e *rcerrors.Error, headersSent bool) int {
	status := e.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if !headersSent {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}
	sseWrite(w, "error", map[string]any{
		"error": map[string]any{
			"message":    e.Message,
			"type":       e.Type,
			"code":       e.Code,
			"statusCode": status,
		},
	})
	return status
}

// sseWrite writes one SSE frame and flushes it immediately so a
// long-lived consumer sees it without buffering delay.
func sseWrite(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
