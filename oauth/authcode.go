package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/BaSui01/routecodex/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrStateMismatch is returned when the loopback callback's state
// parameter doesn't match the one the flow generated.
var ErrStateMismatch = errors.New("oauth: callback state mismatch")

// RunAuthCodeFlow spins an ephemeral loopback HTTP server on a free
// port, builds a PKCE-protected authorization URL with a random state,
// invokes openURL (the caller's browser-opening hook) and waits for the
// provider to redirect back with a code. The code is exchanged for a
// token using the same PKCE verifier.
func RunAuthCodeFlow(ctx context.Context, cfg *oauth2.Config, logger *zap.Logger, openURL func(url string) error) (*tokenstore.Payload, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("oauth: open loopback listener: %w", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	state, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	type result struct {
		code string
		err  error
	}
	resultCh := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			resultCh <- result{err: ErrStateMismatch}
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			resultCh <- result{err: fmt.Errorf("oauth: authorization error: %s", errMsg)}
			http.Error(w, errMsg, http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			resultCh <- result{err: errors.New("oauth: callback missing code")}
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		resultCh <- result{code: code}
		fmt.Fprint(w, "Login complete. You can close this tab.")
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(listener)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	if openURL != nil {
		if err := openURL(authURL); err != nil {
			logger.Warn("failed to open browser automatically", zap.Error(err))
		}
	}
	logger.Info("auth-code flow waiting for callback", zap.String("auth_url", authURL))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("oauth: exchange code: %w", err)
		}
		return tokenFromOAuth2(tok), nil
	}
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
