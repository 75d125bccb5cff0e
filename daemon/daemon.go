// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package daemon

import (
	"context"
	"time"

	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/internal/metrics"
	"github.com/BaSui01/routecodex/internal/pool"
	"github.com/BaSui01/routecodex/oauth"
	"github.com/BaSui01/routecodex/tokenstore"
	"go.uber.org/zap"
)

// DefaultTickInterval is the daemon's poll cadence (§4.6).
const DefaultTickInterval = 60 * time.Second

// Options configures a Daemon. Zero values fall back to the spec's
// recommended defaults.
type Options struct {
	TickInterval time.Duration
	MaxWorkers   int // bounded worker pool size, recommended 4-8 (§4.6 step 2)
	LeasePath    string
	OwnerID      string
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 6
	}
	return o
}

// Daemon runs the Refresh Daemon's tick loop: enumerate OAuth-backed
// token targets, evaluate each, and enqueue refreshes for those that are
// expiring/expired, not auto-suspended, and carry a refresh token.
type Daemon struct {
	opts     Options
	cfg      *config.Config
	resolve  OAuthConfigResolver
	history  *tokenstore.History
	events   *tokenstore.EventLog
	lease    *LeaseManager
	pool     *pool.Pool
	oauthMgr *oauth.Manager
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// New builds a Daemon. history and events must already be open (the
// caller owns their lifecycle); metrics may be nil to disable
// instrumentation.
func New(cfg *config.Config, resolve OAuthConfigResolver, history *tokenstore.History, events *tokenstore.EventLog, mc *metrics.Collector, opts Options, logger *zap.Logger) *Daemon {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Daemon{
		opts:     opts,
		cfg:      cfg,
		resolve:  resolve,
		history:  history,
		events:   events,
		oauthMgr: oauth.NewManager(logger),
		metrics:  mc,
		logger:   logger.With(zap.String("component", "refresh-daemon")),
		pool: pool.New(pool.Config{
			MaxWorkers: opts.MaxWorkers,
			QueueSize:  opts.MaxWorkers * 4,
		}),
	}
	if opts.LeasePath != "" {
		d.lease = NewLeaseManager(opts.LeasePath, opts.OwnerID)
	}
	return d
}

// Run blocks, ticking every TickInterval until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.TickInterval)
	defer ticker.Stop()
	defer d.pool.Close()

	for {
		select {
		case <-ctx.Done():
			if d.lease != nil {
				_ = d.lease.Release()
			}
			return ctx.Err()
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick runs one evaluation pass. Kept as its own method (not folded
// into Run) so tests can drive individual ticks deterministically.
func (d *Daemon) tick(ctx context.Context) {
	if d.lease != nil {
		acquired, err := d.lease.TryAcquire()
		if err != nil {
			d.logger.Error("lease acquisition failed", zap.Error(err))
			return
		}
		if !acquired {
			d.logger.Debug("lease held by another live process, backing off")
			return
		}
	}

	for _, target := range Discover(d.cfg, d.resolve) {
		target := target
		if err := d.pool.Submit(ctx, func(ctx context.Context) error {
			return d.refreshOne(ctx, target)
		}); err != nil {
			d.logger.Warn("refresh job rejected", zap.String("target", target.HistoryKey()), zap.Error(err))
		}
	}
}

func (d *Daemon) refreshOne(ctx context.Context, target TokenTarget) error {
	key := target.HistoryKey()
	agg := d.history.Get(key)

	if agg.AutoSuspended {
		if !d.clearSuspensionIfMtimeAdvanced(target, agg) {
			return nil
		}
		agg = d.history.Get(key)
	}

	payload, _, err := tokenstore.LoadPayload(target.TokenFile)
	if err != nil {
		return err
	}
	state := tokenstore.Evaluate(payload, time.Now())
	if state.Status != tokenstore.StatusExpiring && state.Status != tokenstore.StatusExpired {
		return nil
	}
	if payload.RefreshToken == "" {
		return nil
	}

	start := time.Now()
	_, refreshErr := d.oauthMgr.EnsureValidOAuthToken(ctx, target.TokenFile, target.OAuthConfig, oauth.EnsureOptions{MaxRefreshRetries: 3})
	durationMs := time.Since(start).Milliseconds()
	success := refreshErr == nil

	var mtimeAfter *time.Time
	if _, mt, err := tokenstore.LoadPayload(target.TokenFile); err == nil {
		mtimeAfter = &mt
	}

	result := d.history.RecordRefreshResult(key, tokenstore.ModeAuto, success, durationMs, mtimeAfter)
	d.recordEvent(target, tokenstore.ModeAuto, success, durationMs, refreshErr)
	if d.metrics != nil {
		d.metrics.RecordTokenRefresh(target.ProviderID, string(tokenstore.ModeAuto), resultLabel(success))
		d.metrics.SetTokenSuspended(target.ProviderID, target.KeyID, result.AutoSuspended)
	}
	return refreshErr
}

// clearSuspensionIfMtimeAdvanced implements §4.6 step 4's escape hatch: a
// suspended token becomes eligible again once its on-disk mtime has moved
// past the mtime recorded at suspension time, meaning the user
// re-authorized it out of band.
func (d *Daemon) clearSuspensionIfMtimeAdvanced(target TokenTarget, agg tokenstore.HistoryAggregate) bool {
	_, mtime, err := tokenstore.LoadPayload(target.TokenFile)
	if err != nil {
		return false
	}
	if agg.LastTokenMtime != nil && mtime.After(*agg.LastTokenMtime) {
		d.history.ClearSuspension(target.HistoryKey())
		return true
	}
	return false
}

func (d *Daemon) recordEvent(target TokenTarget, mode tokenstore.RefreshMode, success bool, durationMs int64, refreshErr error) {
	evt := tokenstore.Event{
		Event:      "token-refresh-" + resultLabel(success),
		Provider:   target.ProviderID,
		Alias:      target.KeyID,
		FilePath:   target.TokenFile,
		DurationMs: durationMs,
		Mode:       mode,
		Timestamp:  time.Now(),
	}
	if refreshErr != nil {
		evt.Error = refreshErr.Error()
	}
	if err := d.events.Append(evt); err != nil {
		d.logger.Warn("failed to append daemon event", zap.Error(err))
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
