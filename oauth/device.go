package oauth

import (
	"context"
	"fmt"

	"github.com/BaSui01/routecodex/tokenstore"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DeviceFlowResult carries what the caller needs to show the user before
// DeviceAccessToken blocks waiting for approval.
type DeviceFlowResult struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
}

// RunDeviceFlow performs the full device-code flow: request a device
// code, surface the verification URL via onPrompt, then block polling
// the token endpoint (honoring authorization_pending/slow_down and the
// advertised expiry) until the user approves or the code expires.
// golang.org/x/oauth2's DeviceAuth/DeviceAccessToken already implement
// the poll-with-backoff loop described in §4.5, so this is a thin
// wrapper that also logs and converts the result into our Payload shape.
func RunDeviceFlow(ctx context.Context, cfg *oauth2.Config, logger *zap.Logger, onPrompt func(DeviceFlowResult)) (*tokenstore.Payload, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: start device auth: %w", err)
	}

	if onPrompt != nil {
		onPrompt(DeviceFlowResult{
			UserCode:                da.UserCode,
			VerificationURI:         da.VerificationURI,
			VerificationURIComplete: da.VerificationURIComplete,
		})
	}
	logger.Info("device flow started",
		zap.String("user_code", da.UserCode),
		zap.String("verification_uri", da.VerificationURI))

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("oauth: device access token: %w", err)
	}

	return tokenFromOAuth2(tok), nil
}

func tokenFromOAuth2(tok *oauth2.Token) *tokenstore.Payload {
	p := &tokenstore.Payload{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		p.ExpiresAt = tok.Expiry.UnixMilli()
	}
	if v, ok := tok.Extra("resource_url").(string); ok {
		p.ResourceURL = v
	}
	if v, ok := tok.Extra("project_id").(string); ok {
		p.ProjectID = v
	}
	return p
}
