package oauth

import (
	"context"
	"time"

	"github.com/BaSui01/routecodex/internal/retry"
	"github.com/BaSui01/routecodex/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// RefreshTokensWithRetry exchanges a refresh token for a fresh access
// token, retrying up to maxRetries times with the spec's linear backoff
// (delay = attempt * 1s). Every attempt is retried; the caller decides
// what to do with a final failure (e.g. fall through to a full
// re-acquisition flow).
func RefreshTokensWithRetry(ctx context.Context, cfg *oauth2.Config, refreshToken string, maxRetries int, logger *zap.Logger) (*tokenstore.Payload, error) {
	r := retry.New(retry.LinearPolicy(maxRetries, time.Second), logger)

	var payload *tokenstore.Payload
	err := r.Do(ctx, nil, func() error {
		src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		tok, err := src.Token()
		if err != nil {
			return err
		}
		payload = tokenFromOAuth2(tok)
		if payload.RefreshToken == "" {
			// Some providers omit refresh_token on a refresh response,
			// meaning "unchanged" — preserve the one we refreshed with.
			payload.RefreshToken = refreshToken
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}
