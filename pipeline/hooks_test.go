package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookChain_WrapsInRegistrationOrder(t *testing.T) {
	var order []string
	hooks := NewHookChain()
	hooks.Register(StageRequestPreprocessing, func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			order = append(order, "first")
			return next(ctx, req)
		}
	})
	hooks.Register(StageRequestPreprocessing, func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			order = append(order, "second")
			return next(ctx, req)
		}
	})

	handler := hooks.Then(StageRequestPreprocessing, func(ctx context.Context, req *Request) (*Response, error) {
		order = append(order, "core")
		return &Response{}, nil
	})
	_, err := handler(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "core"}, order)
}

func TestHookChain_EmptyStagePassesThrough(t *testing.T) {
	hooks := NewHookChain()
	called := false
	handler := hooks.Then(StageHTTPRequest, func(ctx context.Context, req *Request) (*Response, error) {
		called = true
		return &Response{}, nil
	})
	_, err := handler(context.Background(), &Request{})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTimingHook_RecordsDurationInMetadata(t *testing.T) {
	handler := TimingHook(StageHTTPRequest)(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{}, nil
	})
	req := &Request{}
	_, err := handler(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, req.Metadata, "http_request_duration_ms")
}
