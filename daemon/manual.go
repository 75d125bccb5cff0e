// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/routecodex/oauth"
	"github.com/BaSui01/routecodex/tokenstore"
)

// ErrStaticAlias is returned when a manual refresh targets the read-only
// "static" alias (§4.6).
var ErrStaticAlias = fmt.Errorf("daemon: alias %q is read-only, nothing to refresh", StaticAlias)

// ManualRefresh implements the tokenctl `oauth <selector>` operation:
// forces re-authorization regardless of current token state, records the
// outcome with mode=manual (which never counts toward the auto-suspend
// streak and always clears any existing suspension on success), and
// refuses to touch the literal "static" alias.
func ManualRefresh(ctx context.Context, mgr *oauth.Manager, history *tokenstore.History, events *tokenstore.EventLog, target TokenTarget, openURL func(string) error, onDevicePrompt func(oauth.DeviceFlowResult), useDeviceFlow bool) (*tokenstore.Payload, error) {
	if target.KeyID == StaticAlias {
		return nil, ErrStaticAlias
	}

	start := time.Now()
	payload, err := mgr.EnsureValidOAuthToken(ctx, target.TokenFile, target.OAuthConfig, oauth.EnsureOptions{
		ForceReauthorize: true,
		OpenURL:          openURL,
		OnDevicePrompt:   onDevicePrompt,
		UseDeviceFlow:    useDeviceFlow,
	})
	durationMs := time.Since(start).Milliseconds()
	success := err == nil

	var mtime *time.Time
	if _, mt, loadErr := tokenstore.LoadPayload(target.TokenFile); loadErr == nil {
		mtime = &mt
	}

	if history != nil {
		history.RecordRefreshResult(target.HistoryKey(), tokenstore.ModeManual, success, durationMs, mtime)
	}
	if events != nil {
		evt := tokenstore.Event{
			Event:      "token-refresh-" + resultLabel(success),
			Provider:   target.ProviderID,
			Alias:      target.KeyID,
			FilePath:   target.TokenFile,
			DurationMs: durationMs,
			Mode:       tokenstore.ModeManual,
			Timestamp:  time.Now(),
		}
		if err != nil {
			evt.Error = err.Error()
		}
		_ = events.Append(evt)
	}

	if err != nil {
		return nil, err
	}
	return payload, nil
}
