// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/BaSui01/routecodex/config"
	"github.com/BaSui01/routecodex/daemon"
	"github.com/BaSui01/routecodex/dispatcher"
	"github.com/BaSui01/routecodex/internal/metrics"
	"github.com/BaSui01/routecodex/internal/server"
	"github.com/BaSui01/routecodex/pipeline"
	"github.com/BaSui01/routecodex/provider"
	"github.com/BaSui01/routecodex/tokenstore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server owns every process-lifetime dependency the gateway needs: the
// entry HTTP surface, the metrics surface, and the OAuth Refresh Daemon
// running alongside them. Start/Shutdown bracket all three.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	dispatcher *dispatcher.Dispatcher
	factory    *provider.Factory
	cache      *pipeline.Cache
	collector  *metrics.Collector

	history *tokenstore.History
	events  *tokenstore.EventLog
	daemon  *daemon.Daemon
	cancel  context.CancelFunc
}

// NewServer wires the dispatcher over a provider Factory and pipeline
// Cache built here, the metrics collector, and the daemon with its own
// history/event stores. It does not start listening.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	collector := metrics.NewCollector("routecodex", logger)
	factory := provider.NewFactory(logger)
	cache := pipeline.NewCache(pipeline.DefaultCacheCapacity, logger)

	history, err := tokenstore.OpenHistory(extensionPath(cfg, "tokenHistoryPath", "token-history.json"))
	if err != nil {
		return nil, fmt.Errorf("open token history: %w", err)
	}
	events, err := tokenstore.OpenEventLog(extensionPath(cfg, "tokenEventLogPath", "token-events.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("open token event log: %w", err)
	}

	disp := dispatcher.New(cfg, dispatcher.Options{
		Cache:   cache,
		Factory: factory,
		Metrics: collector,
		Logger:  logger,
	})

	d := daemon.New(cfg, provider.OAuthConfigFor, history, events, collector, daemon.Options{
		LeasePath: extensionPath(cfg, "daemonLeasePath", "routecodex-daemon.lease"),
		OwnerID:   fmt.Sprintf("routecodex-%d", os.Getpid()),
	}, logger)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		dispatcher: disp,
		factory:    factory,
		cache:      cache,
		collector:  collector,
		history:    history,
		events:     events,
		daemon:     d,
	}, nil
}

// Start begins serving the entry surface, the metrics surface, and the
// daemon's tick loop, all non-blocking.
func (s *Server) Start() error {
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}
	s.startDaemon()

	s.logger.Info("routecodex started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

func (s *Server) startHTTPServer() error {
	cfg := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.httpManager = server.NewManager(s.dispatcher.Routes(), cfg, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	cfg := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.metricsManager = server.NewManager(mux, cfg, s.logger)
	return s.metricsManager.Start()
}

func (s *Server) startDaemon() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		if err := s.daemon.Run(ctx); err != nil && err != context.Canceled {
			s.logger.Error("refresh daemon stopped", zap.Error(err))
		}
	}()
}

// WaitForShutdown blocks on the entry server's signal handling, then
// runs Shutdown.
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
	s.Shutdown()
}

// Shutdown stops the daemon's tick loop, drains the entry server and
// then the metrics server, shuts down the dispatcher and closes the
// event log.
func (s *Server) Shutdown() {
	s.logger.Info("shutting down routecodex")

	if s.cancel != nil {
		s.cancel()
	}

	ctx := context.Background()
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	s.dispatcher.Shutdown()

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.Error("event log close error", zap.Error(err))
		}
	}

	s.logger.Info("shutdown complete")
}

// extensionPath reads a string path out of cfg.Extensions, falling back
// to def when the key is absent or not a string.
func extensionPath(cfg *config.Config, key, def string) string {
	if v, ok := cfg.Extensions[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}
