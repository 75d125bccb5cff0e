package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	resp *Response
	err  error
}

func (s *stubProvider) SendRequest(ctx context.Context, req *Request) (*Response, error) {
	return s.resp, s.err
}
func (s *stubProvider) Cleanup() error { return nil }

func TestPipeline_Handle_RunsCompatibilityThenProvider(t *testing.T) {
	compat := NewCompatibility(ProfileOpenAI, nil)
	prov := &stubProvider{resp: &Response{Content: "ok"}}
	p := New(compat, prov, nil)

	resp, err := p.Handle(context.Background(), &Request{Model: "m", ToolChoice: "auto"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestPipeline_Handle_PropagatesProviderError(t *testing.T) {
	compat := NewCompatibility(ProfileOpenAI, nil)
	prov := &stubProvider{err: errors.New("upstream boom")}
	p := New(compat, prov, nil)

	_, err := p.Handle(context.Background(), &Request{Model: "m"})
	assert.EqualError(t, err, "upstream boom")
}

func TestPipeline_Handle_RunsErrorHandlingHookOnFailure(t *testing.T) {
	compat := NewCompatibility(ProfileOpenAI, nil)
	prov := &stubProvider{err: errors.New("boom")}
	hooks := NewHookChain()
	called := false
	hooks.Register(StageErrorHandling, func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (*Response, error) {
			called = true
			return next(ctx, req)
		}
	})
	p := New(compat, prov, hooks)

	_, err := p.Handle(context.Background(), &Request{Model: "m"})
	assert.Error(t, err)
	assert.True(t, called)
}

func TestPipeline_Cleanup_DelegatesToProvider(t *testing.T) {
	cleaned := false
	prov := &cleanupTrackingProvider{stubProvider: stubProvider{resp: &Response{}}, onCleanup: func() { cleaned = true }}
	p := New(NewCompatibility(ProfileOpenAI, nil), prov, nil)
	p.Cleanup()
	assert.True(t, cleaned)
}

type cleanupTrackingProvider struct {
	stubProvider
	onCleanup func()
}

func (c *cleanupTrackingProvider) Cleanup() error {
	c.onCleanup()
	return nil
}
