package auth

import (
	"context"
	"fmt"

	"github.com/BaSui01/routecodex/oauth"
	"github.com/BaSui01/routecodex/tokenstore"
	"golang.org/x/oauth2"
)

// Provider builds the Authorization (and any provider-specific) header
// value for one upstream call. Readers re-invoke Headers on every call
// so external token-file updates are observed without restart.
type Provider interface {
	Headers(ctx context.Context) (map[string]string, error)
}

// APIKeyProvider attaches a static bearer token. A CredentialOverride
// found on ctx takes precedence over the configured key.
type APIKeyProvider struct {
	APIKey string
	Scheme string // defaults to "Bearer"
}

func (p *APIKeyProvider) Headers(ctx context.Context) (map[string]string, error) {
	key := p.APIKey
	if override, ok := CredentialOverrideFromContext(ctx); ok && override.APIKey != "" {
		key = override.APIKey
	}
	if key == "" {
		return nil, fmt.Errorf("auth: no api key configured")
	}
	scheme := p.Scheme
	if scheme == "" {
		scheme = "Bearer"
	}
	return map[string]string{"Authorization": scheme + " " + key}, nil
}

// TokenFileProvider reads apiKey/access_token straight from a token file
// on every call without ever attempting a refresh. Used for the literal
// "static" alias the refresh daemon treats as read-only.
type TokenFileProvider struct {
	FilePath string
}

func (p *TokenFileProvider) Headers(ctx context.Context) (map[string]string, error) {
	payload, _, err := tokenstore.LoadPayload(p.FilePath)
	if err != nil {
		return nil, fmt.Errorf("auth: read token file: %w", err)
	}
	scheme, value := tokenstore.AuthHeaderValue(payload)
	if value == "" {
		return nil, fmt.Errorf("auth: token file %s has no credential", p.FilePath)
	}
	return map[string]string{"Authorization": scheme + " " + value}, nil
}

// OAuthProvider builds an Authorization header from a managed OAuth
// token, calling ensureValidOAuthToken before every read so an
// in-flight refresh is observed (§4.4 step 2).
type OAuthProvider struct {
	FilePath string
	Config   *oauth2.Config
	Manager  *oauth.Manager
	Options  oauth.EnsureOptions
}

func (p *OAuthProvider) Headers(ctx context.Context) (map[string]string, error) {
	if override, ok := CredentialOverrideFromContext(ctx); ok && override.APIKey != "" {
		return map[string]string{"Authorization": "Bearer " + override.APIKey}, nil
	}

	payload, err := p.Manager.EnsureValidOAuthToken(ctx, p.FilePath, p.Config, p.Options)
	if err != nil {
		return nil, fmt.Errorf("auth: ensure valid oauth token: %w", err)
	}
	scheme, value := tokenstore.AuthHeaderValue(payload)
	if value == "" {
		return nil, fmt.Errorf("auth: oauth token has no credential")
	}
	headers := map[string]string{"Authorization": scheme + " " + value}
	if payload.ProjectID != "" {
		headers["X-Goog-User-Project"] = payload.ProjectID
	}
	return headers, nil
}
