// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package dispatcher

import (
	"context"
	"fmt"

	"github.com/BaSui01/routecodex/classifier"
	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/internal/metrics"
	"github.com/BaSui01/routecodex/pipeline"
	"github.com/BaSui01/routecodex/provider"
	"github.com/BaSui01/routecodex/router"
	"go.uber.org/zap"
)

// Dispatcher owns the request→route→pipeline→response chain: it never
// talks to an upstream directly, delegating that to the per-target
// pipeline the cache hands it.
type Dispatcher struct {
	cfg        *config.Config
	sw         pipeline.LLMSwitch
	classifier *classifier.Classifier
	balancer   *router.Balancer
	cache      *pipeline.Cache
	factory    *provider.Factory
	metrics    *metrics.Collector
	logger     *zap.Logger
	projectID  func() string
}

// Options bundles the Dispatcher's shared, process-lifetime
// dependencies. Dispatcher.Shutdown shuts down the Factory; the Cache
// is not purged.
type Options struct {
	Cache     *pipeline.Cache
	Factory   *provider.Factory
	Metrics   *metrics.Collector
	Logger    *zap.Logger
	ProjectID func() string
}

// New builds a Dispatcher over cfg's Route Target Pool and Classification
// Config. A nil Cache/Factory/Logger in opts gets a fresh default.
func New(cfg *config.Config, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := opts.Cache
	if cache == nil {
		cache = pipeline.NewCache(pipeline.DefaultCacheCapacity, logger)
	}
	factory := opts.Factory
	if factory == nil {
		factory = provider.NewFactory(logger)
	}
	projectID := opts.ProjectID
	if projectID == nil {
		projectID = func() string { return "" }
	}

	return &Dispatcher{
		cfg:        cfg,
		sw:         pipeline.NewSwitch(),
		classifier: classifier.New(cfg.Classification, logger),
		balancer:   router.New(cfg.Pool),
		cache:      cache,
		factory:    factory,
		metrics:    opts.Metrics,
		logger:     logger,
		projectID:  projectID,
	}
}

// pipelineFor returns the cached pipeline for target, building one on a
// cache miss.
func (d *Dispatcher) pipelineFor(target router.Target) (*pipeline.Pipeline, error) {
	key := config.PipelineKey(target.ProviderID, target.ModelID, target.KeyID)
	entry, ok := d.cfg.Pipelines[key]
	if !ok {
		return nil, fmt.Errorf("dispatcher: no pipeline config for %s", key)
	}

	var built bool
	inst, err := d.cache.GetOrCreate(key, func() (pipeline.Instance, error) {
		built = true
		return d.buildPipeline(target, key, entry)
	})
	if err != nil {
		return nil, err
	}
	if d.metrics != nil {
		if built {
			d.metrics.RecordPipelineCacheMiss()
		} else {
			d.metrics.RecordPipelineCacheHit()
		}
	}

	pl, ok := inst.(*pipeline.Pipeline)
	if !ok {
		return nil, fmt.Errorf("dispatcher: cache entry for %s is not a pipeline", key)
	}
	return pl, nil
}

func (d *Dispatcher) buildPipeline(target router.Target, key string, entry config.PipelineTargetConfig) (*pipeline.Pipeline, error) {
	sel := provider.Selector{ProviderType: entry.Provider.Type, AuthType: entry.Provider.Auth.Type}
	params := provider.BuildParams{
		Info:       provider.Info{ProviderID: target.ProviderID, ModelID: target.ModelID, KeyID: target.KeyID, Vendor: entry.Provider.Type},
		Target:     entry.Provider,
		RuntimeKey: key,
		TokenFile:  entry.Provider.Auth.TokenFile,
		AliasID:    target.KeyID,
		SessionID:  key,
		ProjectID:  d.projectID,
	}

	prov, _, err := d.factory.GetOrCreate(context.Background(), sel, params)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: build provider for %s: %w", key, err)
	}

	profile := pipeline.Profile(entry.Compatibility.Profile)
	if profile == "" {
		profile = defaultProfile(entry.Provider.Type)
	}
	filter, err := loadShapeFilter(entry.Compatibility.ShapeFilterFile)
	if err != nil {
		return nil, err
	}
	compat := pipeline.NewCompatibility(profile, filter)

	hooks := pipeline.NewHookChain().
		Register(pipeline.StageRequestPreprocessing, pipeline.TimingHook(pipeline.StageRequestPreprocessing)).
		Register(pipeline.StageRequestPreprocessing, pipeline.LoggingHook(d.logger, pipeline.StageRequestPreprocessing)).
		Register(pipeline.StageErrorHandling, pipeline.LoggingHook(d.logger, pipeline.StageErrorHandling))

	return pipeline.New(compat, prov, hooks), nil
}

// defaultProfile maps a provider family to its Compatibility profile
// when the config doesn't name one explicitly.
func defaultProfile(providerType string) pipeline.Profile {
	switch providerType {
	case "glm":
		return pipeline.ProfileGLM
	case "qwen":
		return pipeline.ProfileQwen
	case "iflow":
		return pipeline.ProfileIFlow
	case "deepseek":
		return pipeline.ProfileDeepSeek
	case "gemini":
		return pipeline.ProfileGemini
	case "geminicli", "antigravity":
		return pipeline.ProfileGeminiCLI
	case "lmstudio":
		return pipeline.ProfileLMStudio
	default:
		return pipeline.ProfileOpenAI
	}
}

// Shutdown shuts down the dispatcher's provider Factory, whether it was
// passed in opts or built by New. The pipeline Cache is left as is: its
// instances are not cleaned up here. Safe to call once during process
// shutdown (§9).
func (d *Dispatcher) Shutdown() {
	d.factory.Shutdown()
}
