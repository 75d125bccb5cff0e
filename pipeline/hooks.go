package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Stage names the four hook points spec §4.3/§9 name: request
// preprocessing, the outbound HTTP call, the inbound response, and
// error handling.
type Stage string

const (
	StageRequestPreprocessing Stage = "request_preprocessing"
	StageHTTPRequest          Stage = "http_request"
	StageHTTPResponse         Stage = "http_response"
	StageErrorHandling        Stage = "error_handling"
)

// Handler is one pipeline step's core logic, grounded on the teacher's
// middleware.Handler shape.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Hook wraps a Handler with cross-cutting behavior (logging, timing,
// metrics). Grounded on middleware.Middleware.
type Hook func(next Handler) Handler

// HookChain composes a named ordered list of Hooks per Stage, grounded
// on middleware.Chain's Use/Then shape.
type HookChain struct {
	hooks map[Stage][]Hook
}

// NewHookChain builds an empty chain.
func NewHookChain() *HookChain {
	return &HookChain{hooks: make(map[Stage][]Hook)}
}

// Register appends a hook at the given stage.
func (c *HookChain) Register(stage Stage, h Hook) *HookChain {
	c.hooks[stage] = append(c.hooks[stage], h)
	return c
}

// Then wraps handler with every hook registered at stage, applied
// outermost-first in registration order (matching middleware.Chain.Then).
func (c *HookChain) Then(stage Stage, handler Handler) Handler {
	hooks := c.hooks[stage]
	for i := len(hooks) - 1; i >= 0; i-- {
		handler = hooks[i](handler)
	}
	return handler
}

// LoggingHook logs the wrapped handler's error at debug level when it
// fails; a successful call is not logged.
func LoggingHook(logger *zap.Logger, stage Stage) Hook {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			resp, err := next(ctx, req)
			if err != nil {
				logger.Debug("pipeline stage failed", zap.String("stage", string(stage)), zap.Error(err))
			}
			return resp, err
		}
	}
}

// TimingHook records wall-clock duration into req.Metadata under
// "<stage>_duration_ms".
func TimingHook(stage Stage) Hook {
	key := string(stage) + "_duration_ms"
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if req.Metadata == nil {
				req.Metadata = make(map[string]any)
			}
			req.Metadata[key] = time.Since(start).Milliseconds()
			return resp, err
		}
	}
}
