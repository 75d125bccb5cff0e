// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package daemon

import (
	"github.com/BaSui01/routecodex/config"
	"golang.org/x/oauth2"
)

// StaticAlias is the literal keyId that marks a pre-provisioned,
// read-only credential. Manual refresh skips it per §4.6.
const StaticAlias = "static"

// TokenTarget is one OAuth-backed pipeline target the daemon may refresh:
// the (providerId, modelId, keyId) triple it was discovered under, plus
// the token file and oauth2.Config needed to refresh it.
type TokenTarget struct {
	ProviderID   string
	ModelID      string
	KeyID        string
	ProviderType string
	TokenFile    string
	OAuthConfig  *oauth2.Config
}

// OAuthConfigResolver looks up the well-known oauth2.Config for a
// provider type. provider.OAuthConfigFor satisfies this; it's passed in
// rather than imported directly so daemon never needs to import provider.
type OAuthConfigResolver func(providerType string) (*oauth2.Config, bool)

// Discover walks every pipeline target in cfg and returns the subset
// configured with oauth auth, each paired with its oauth2.Config. Targets
// whose provider type has no known OAuth endpoint (resolve returns false)
// are skipped — they're typically apikey or token-file targets that
// happen to share a route with OAuth ones.
func Discover(cfg *config.Config, resolve OAuthConfigResolver) []TokenTarget {
	var targets []TokenTarget
	seen := map[string]bool{}

	for _, pool := range cfg.Pool {
		for _, t := range pool {
			key := config.PipelineKey(t.ProviderID, t.ModelID, t.KeyID)
			if seen[key] {
				continue
			}
			seen[key] = true

			entry, ok := cfg.Pipelines[key]
			if !ok || entry.Provider.Auth.Type != "oauth" || entry.Provider.Auth.TokenFile == "" {
				continue
			}
			oauthCfg, ok := resolve(entry.Provider.Type)
			if !ok {
				continue
			}
			targets = append(targets, TokenTarget{
				ProviderID:   t.ProviderID,
				ModelID:      t.ModelID,
				KeyID:        t.KeyID,
				ProviderType: entry.Provider.Type,
				TokenFile:    entry.Provider.Auth.TokenFile,
				OAuthConfig:  oauthCfg,
			})
		}
	}
	return targets
}

// HistoryKey is the journal key a TokenTarget's refreshes are recorded
// under: stable across ticks even if the pool's iteration order isn't.
func (t TokenTarget) HistoryKey() string {
	return config.PipelineKey(t.ProviderID, t.ModelID, t.KeyID)
}
