// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/daemon"
	"github.com/BaSui01/routecodex/oauth"
	"github.com/BaSui01/routecodex/provider"
	"github.com/BaSui01/routecodex/tokenstore"
)

// controller wires the same history/event journals and OAuth manager the
// gateway process uses, so tokenctl's view of token state always matches
// what the daemon and the dispatcher's providers see.
type controller struct {
	cfg     *config.Config
	logger  *zap.Logger
	history *tokenstore.History
	events  *tokenstore.EventLog
	mgr     *oauth.Manager
}

func newController(cfg *config.Config, logger *zap.Logger) (*controller, error) {
	history, err := tokenstore.OpenHistory(extensionPath(cfg, "tokenHistoryPath", "token-history.json"))
	if err != nil {
		return nil, fmt.Errorf("open token history: %w", err)
	}
	events, err := tokenstore.OpenEventLog(extensionPath(cfg, "tokenEventLogPath", "token-events.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("open token event log: %w", err)
	}
	return &controller{
		cfg:     cfg,
		logger:  logger,
		history: history,
		events:  events,
		mgr:     oauth.NewManager(logger),
	}, nil
}

func (c *controller) Close() error {
	if c.events != nil {
		return c.events.Close()
	}
	return nil
}

func (c *controller) targets() []daemon.TokenTarget {
	return daemon.Discover(c.cfg, provider.OAuthConfigFor)
}

func (c *controller) findTarget(selector string) (daemon.TokenTarget, error) {
	for _, t := range c.targets() {
		if t.HistoryKey() == selector {
			return t, nil
		}
	}
	return daemon.TokenTarget{}, fmt.Errorf("no OAuth-backed target matches %q", selector)
}

// status prints a one-line summary per OAuth-backed target: its current
// token freshness bucket and its refresh history aggregate.
func (c *controller) status() error {
	targets := c.targets()
	sort.Slice(targets, func(i, j int) bool { return targets[i].HistoryKey() < targets[j].HistoryKey() })

	for _, t := range targets {
		key := t.HistoryKey()
		state := evaluateTarget(t)
		agg := c.history.Get(key)

		suspended := ""
		if agg.AutoSuspended {
			suspended = " [SUSPENDED]"
		}
		fmt.Printf("%-40s  %-10s  successes=%d failures=%d streak=%d%s\n",
			key, state.Status, agg.RefreshSuccesses, agg.RefreshFailures, agg.FailureStreak, suspended)
	}
	return nil
}

// tokens lists every discovered target as a Descriptor: file path,
// display name and evaluated state.
func (c *controller) tokens() error {
	for _, t := range c.targets() {
		state := evaluateTarget(t)
		d := tokenstore.Descriptor{
			Provider:    t.ProviderID,
			Alias:       t.KeyID,
			FilePath:    t.TokenFile,
			DisplayName: t.HistoryKey(),
			State:       state,
		}
		fmt.Printf("%-40s  %-10s  %s\n", d.DisplayName, d.State.Status, d.FilePath)
	}
	return nil
}

// providers lists every provider family present in the pool.
func (c *controller) providers() error {
	seen := map[string]bool{}
	var names []string
	for _, targets := range c.cfg.Pool {
		for _, t := range targets {
			key := config.PipelineKey(t.ProviderID, t.ModelID, t.KeyID)
			entry, ok := c.cfg.Pipelines[key]
			if !ok || seen[entry.Provider.Type] {
				continue
			}
			seen[entry.Provider.Type] = true
			names = append(names, entry.Provider.Type)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// servers lists every configured pipeline target's base URL.
func (c *controller) servers() error {
	var keys []string
	for k := range c.cfg.Pipelines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := c.cfg.Pipelines[k]
		fmt.Printf("%-40s  %s\n", k, entry.Provider.BaseURL)
	}
	return nil
}

// oauth forces an interactive re-authorization for selector, per spec
// §6's "oauth <selector>" operation.
func (c *controller) oauth(selector string, useDeviceFlow bool) error {
	target, err := c.findTarget(selector)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	_, err = daemon.ManualRefresh(ctx, c.mgr, c.history, c.events, target, openBrowser, printDevicePrompt, useDeviceFlow)
	if err != nil {
		return fmt.Errorf("oauth refresh for %s failed: %w", selector, err)
	}
	fmt.Printf("refreshed %s\n", selector)
	return nil
}

// validate checks one target (or every target, for "all") and exits
// non-zero if any checked target's token is invalid or expired.
func (c *controller) validate(selector string) error {
	targets := c.targets()
	if selector != "all" {
		t, err := c.findTarget(selector)
		if err != nil {
			return err
		}
		targets = []daemon.TokenTarget{t}
	}

	var failed []string
	for _, t := range targets {
		state := evaluateTarget(t)
		switch state.Status {
		case tokenstore.StatusInvalid, tokenstore.StatusExpired:
			failed = append(failed, fmt.Sprintf("%s: %s", t.HistoryKey(), state.Status))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("validation failed for %d target(s): %v", len(failed), failed)
	}
	fmt.Printf("all %d target(s) valid\n", len(targets))
	return nil
}

func evaluateTarget(t daemon.TokenTarget) tokenstore.State {
	payload, _, err := tokenstore.LoadPayload(t.TokenFile)
	if err != nil {
		return tokenstore.State{Status: tokenstore.StatusInvalid}
	}
	return tokenstore.Evaluate(payload, time.Now())
}

func printDevicePrompt(r oauth.DeviceFlowResult) {
	fmt.Printf("visit %s and enter code %s\n", r.VerificationURI, r.UserCode)
	if r.VerificationURIComplete != "" {
		fmt.Printf("or visit %s directly\n", r.VerificationURIComplete)
	}
}

// extensionPath reads a string path out of cfg.Extensions, falling back
// to def when the key is absent or not a string. Duplicated from
// cmd/routecodex rather than shared, since the two binaries otherwise
// share no package and a two-line helper doesn't justify one.
func extensionPath(cfg *config.Config, key, def string) string {
	if v, ok := cfg.Extensions[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}
