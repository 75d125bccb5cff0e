package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/routecodex/oauth"
	"github.com/BaSui01/routecodex/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAPIKeyProvider_UsesConfiguredKey(t *testing.T) {
	p := &APIKeyProvider{APIKey: "secret"}
	headers, err := p.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", headers["Authorization"])
}

func TestAPIKeyProvider_OverrideTakesPrecedence(t *testing.T) {
	p := &APIKeyProvider{APIKey: "configured"}
	ctx := WithCredentialOverride(context.Background(), CredentialOverride{APIKey: "overridden"})
	headers, err := p.Headers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer overridden", headers["Authorization"])
}

func TestAPIKeyProvider_MissingKeyErrors(t *testing.T) {
	p := &APIKeyProvider{}
	_, err := p.Headers(context.Background())
	assert.Error(t, err)
}

func TestTokenFileProvider_ReadsAPIKeyOverAccessToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenstore.SavePayload(path, &tokenstore.Payload{AccessToken: "at", APIKey: "ak"}))

	p := &TokenFileProvider{FilePath: path}
	headers, err := p.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer ak", headers["Authorization"])
}

func TestTokenFileProvider_RereadsOnEveryCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenstore.SavePayload(path, &tokenstore.Payload{AccessToken: "first"}))

	p := &TokenFileProvider{FilePath: path}
	first, err := p.Headers(context.Background())
	require.NoError(t, err)
	assert.Contains(t, first["Authorization"], "first")

	require.NoError(t, tokenstore.SavePayload(path, &tokenstore.Payload{AccessToken: "second"}))
	second, err := p.Headers(context.Background())
	require.NoError(t, err)
	assert.Contains(t, second["Authorization"], "second")
}

func TestOAuthProvider_OverrideBypassesTokenManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	p := &OAuthProvider{
		FilePath: path,
		Config:   &oauth2.Config{},
		Manager:  oauth.NewManager(nil),
	}
	ctx := WithCredentialOverride(context.Background(), CredentialOverride{APIKey: "direct-key"})
	headers, err := p.Headers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer direct-key", headers["Authorization"])
}

func TestOAuthProvider_UsesManagedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenstore.SavePayload(path, &tokenstore.Payload{
		AccessToken: "managed",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
		ProjectID:   "proj-1",
	}))

	p := &OAuthProvider{
		FilePath: path,
		Config:   &oauth2.Config{},
		Manager:  oauth.NewManager(nil),
	}
	headers, err := p.Headers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer managed", headers["Authorization"])
	assert.Equal(t, "proj-1", headers["X-Goog-User-Project"])
}
