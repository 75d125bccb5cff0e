package pipeline

import (
	"context"
)

// Provider is the narrow interface the pipeline orchestrator depends
// on; provider.Provider (the full generic contract from spec §4.4)
// satisfies it. Kept separate so pipeline never imports the provider
// package, avoiding an import cycle (provider imports pipeline for its
// Request/Response types).
type Provider interface {
	SendRequest(ctx context.Context, req *Request) (*Response, error)
	Cleanup() error
}

// Pipeline composes Compatibility → Provider for one target, per spec
// §4.3. The LLMSwitch step (FromEntry/ToEntry) brackets Handle from the
// outside instead of living on Pipeline: the dispatcher owns one
// LLMSwitch shared across every target's pipeline, since wire-protocol
// conversion doesn't vary per provider. Pipeline satisfies Instance so
// the Cache can evict it.
type Pipeline struct {
	Compatibility *Compatibility
	Provider      Provider
	Hooks         *HookChain
}

// New builds a Pipeline. A nil Hooks uses an empty chain.
func New(compat *Compatibility, prov Provider, hooks *HookChain) *Pipeline {
	if hooks == nil {
		hooks = NewHookChain()
	}
	return &Pipeline{Compatibility: compat, Provider: prov, Hooks: hooks}
}

// Handle runs req through Compatibility then Provider, with the
// request_preprocessing and error_handling hook stages wrapped around
// the whole call. Hooks registered at http_request/http_response are
// not run by Handle, and the Provider does not receive the chain.
func (p *Pipeline) Handle(ctx context.Context, req *Request) (*Response, error) {
	handler := func(ctx context.Context, req *Request) (*Response, error) {
		rewritten, err := p.Compatibility.Execute(ctx, req)
		if err != nil {
			return nil, err
		}
		return p.Provider.SendRequest(ctx, rewritten)
	}

	wrapped := p.Hooks.Then(StageRequestPreprocessing, handler)
	resp, err := wrapped(ctx, req)
	if err != nil {
		errHandler := p.Hooks.Then(StageErrorHandling, func(ctx context.Context, req *Request) (*Response, error) {
			return nil, err
		})
		return errHandler(ctx, req)
	}
	return resp, nil
}

// Cleanup releases the underlying Provider's resources. Satisfies
// Instance for the Cache.
func (p *Pipeline) Cleanup() {
	_ = p.Provider.Cleanup()
}
