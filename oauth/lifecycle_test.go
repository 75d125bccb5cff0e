package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/routecodex/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func mockTokenServer(t *testing.T, refreshCount *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(refreshCount, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access-token",
			"refresh_token": "new-refresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
}

func TestEnsureValidOAuthToken_ReturnsCachedWhenValid(t *testing.T) {
	server := mockTokenServer(t, new(int32))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenstore.SavePayload(path, &tokenstore.Payload{
		AccessToken: "still-good",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}))

	cfg := NewConfig(Endpoint{TokenURL: server.URL}, "client-id", "", "", nil)
	m := NewManager(nil)

	payload, err := m.EnsureValidOAuthToken(context.Background(), path, cfg, EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, "still-good", payload.AccessToken)
}

func TestEnsureValidOAuthToken_RefreshesWhenExpiring(t *testing.T) {
	var refreshCount int32
	server := mockTokenServer(t, &refreshCount)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenstore.SavePayload(path, &tokenstore.Payload{
		AccessToken:  "stale",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(10 * time.Second).UnixMilli(),
	}))

	cfg := NewConfig(Endpoint{TokenURL: server.URL}, "client-id", "", "", nil)
	m := NewManager(nil)

	payload, err := m.EnsureValidOAuthToken(context.Background(), path, cfg, EnsureOptions{})
	require.NoError(t, err)
	assert.Equal(t, "new-access-token", payload.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCount))

	reloaded, _, err := tokenstore.LoadPayload(path)
	require.NoError(t, err)
	assert.Equal(t, "new-access-token", reloaded.AccessToken)
}

// Scenario from spec §8: concurrent ensureValidOAuthToken calls on the
// same token file issue exactly one upstream refresh request.
func TestEnsureValidOAuthToken_SingleFlightCoalescesConcurrentRefreshes(t *testing.T) {
	var refreshCount int32
	server := mockTokenServer(t, &refreshCount)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenstore.SavePayload(path, &tokenstore.Payload{
		AccessToken:  "stale",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(10 * time.Second).UnixMilli(),
	}))

	cfg := NewConfig(Endpoint{TokenURL: server.URL}, "client-id", "", "", nil)
	m := NewManager(nil)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := m.EnsureValidOAuthToken(context.Background(), path, cfg, EnsureOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCount))
}

func TestHandleUpstreamInvalidOAuthToken_RefreshesAndReportsRetry(t *testing.T) {
	var refreshCount int32
	server := mockTokenServer(t, &refreshCount)
	defer server.Close()

	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, tokenstore.SavePayload(path, &tokenstore.Payload{
		AccessToken:  "stale",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}))

	cfg := NewConfig(Endpoint{TokenURL: server.URL}, "client-id", "", "", nil)
	m := NewManager(nil)

	shouldRetry, err := m.HandleUpstreamInvalidOAuthToken(context.Background(), path, cfg, assertInvalidTokenErr{}, func(error) bool { return true })
	require.NoError(t, err)
	assert.True(t, shouldRetry)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCount))
}

func TestHandleUpstreamInvalidOAuthToken_IgnoresUnrelatedErrors(t *testing.T) {
	m := NewManager(nil)
	shouldRetry, err := m.HandleUpstreamInvalidOAuthToken(context.Background(), "/dev/null", &oauth2.Config{}, assertInvalidTokenErr{}, func(error) bool { return false })
	require.NoError(t, err)
	assert.False(t, shouldRetry)
}

type assertInvalidTokenErr struct{}

func (assertInvalidTokenErr) Error() string { return "invalid_token" }
