package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/routecodex/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// EnsureOptions mirrors §4.5's ensureValidOAuthToken options.
type EnsureOptions struct {
	OpenBrowser                bool
	ForceReauthorize           bool
	ForceReacquireIfRefreshFails bool
	MaxRefreshRetries          int
	OpenURL                    func(url string) error
	OnDevicePrompt             func(DeviceFlowResult)
	UseDeviceFlow              bool // true selects RunDeviceFlow over RunAuthCodeFlow for a full re-acquisition
}

// Manager coordinates ensureValidOAuthToken calls for every (provider,
// tokenFile) pair sharing a single-flight group so concurrent callers
// for the same file issue exactly one upstream refresh request.
type Manager struct {
	group  singleflight.Group
	logger *zap.Logger
}

// NewManager builds a Manager. A nil logger is replaced with a no-op one.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// EnsureValidOAuthToken implements §4.5: read the token file, refresh it
// if it's within the expiry buffer, or run a full acquisition flow if
// it's absent/unrefreshable. The returned Payload is also persisted back
// to tokenFile atomically before returning.
func (m *Manager) EnsureValidOAuthToken(ctx context.Context, tokenFile string, cfg *oauth2.Config, opts EnsureOptions) (*tokenstore.Payload, error) {
	v, err, _ := m.group.Do(tokenFile, func() (any, error) {
		return m.ensure(ctx, tokenFile, cfg, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*tokenstore.Payload), nil
}

func (m *Manager) ensure(ctx context.Context, tokenFile string, cfg *oauth2.Config, opts EnsureOptions) (*tokenstore.Payload, error) {
	payload, _, loadErr := tokenstore.LoadPayload(tokenFile)

	if loadErr != nil || opts.ForceReauthorize {
		return m.reacquire(ctx, tokenFile, cfg, opts)
	}

	state := tokenstore.Evaluate(payload, time.Now())
	if state.Status == tokenstore.StatusValid {
		return payload, nil
	}

	if payload.RefreshToken == "" {
		return m.reacquire(ctx, tokenFile, cfg, opts)
	}

	maxRetries := opts.MaxRefreshRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	refreshed, err := RefreshTokensWithRetry(ctx, cfg, payload.RefreshToken, maxRetries, m.logger)
	if err != nil {
		if opts.ForceReacquireIfRefreshFails {
			return m.reacquire(ctx, tokenFile, cfg, opts)
		}
		return nil, fmt.Errorf("oauth: refresh failed: %w", err)
	}

	if err := tokenstore.SavePayload(tokenFile, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

func (m *Manager) reacquire(ctx context.Context, tokenFile string, cfg *oauth2.Config, opts EnsureOptions) (*tokenstore.Payload, error) {
	var payload *tokenstore.Payload
	var err error

	if opts.UseDeviceFlow {
		payload, err = RunDeviceFlow(ctx, cfg, m.logger, opts.OnDevicePrompt)
	} else {
		payload, err = RunAuthCodeFlow(ctx, cfg, m.logger, opts.OpenURL)
	}
	if err != nil {
		return nil, fmt.Errorf("oauth: reacquire token: %w", err)
	}

	if err := tokenstore.SavePayload(tokenFile, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// HandleUpstreamInvalidOAuthToken implements §4.5's last paragraph: if
// isInvalidTokenError reports the upstream error as an invalid/expired
// token, perform one refresh+reload and return true so the caller may
// retry the request once with fresh headers; otherwise return false.
func (m *Manager) HandleUpstreamInvalidOAuthToken(ctx context.Context, tokenFile string, cfg *oauth2.Config, upstreamErr error, isInvalidTokenError func(error) bool) (bool, error) {
	if !isInvalidTokenError(upstreamErr) {
		return false, nil
	}

	payload, _, loadErr := tokenstore.LoadPayload(tokenFile)
	if loadErr != nil || payload.RefreshToken == "" {
		return false, nil
	}

	refreshed, err := RefreshTokensWithRetry(ctx, cfg, payload.RefreshToken, 1, m.logger)
	if err != nil {
		return false, err
	}
	if err := tokenstore.SavePayload(tokenFile, refreshed); err != nil {
		return false, err
	}
	return true, nil
}
