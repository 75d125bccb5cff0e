// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

/*
Package server provides HTTP/HTTPS server lifecycle management: non-blocking
startup, graceful shutdown, and OS signal handling.

# Overview

Manager wraps net/http.Server to unify listening, serving, shutdown, and
error propagation into one lifecycle. It supports both plain HTTP and TLS
startup modes and handles SIGINT/SIGTERM internally for graceful shutdown
in production.

# Core types

  - Manager: the HTTP server manager, holding an http.Server, a
    net.Listener, and an asynchronous error channel, exposing
    Start/StartTLS/Shutdown/WaitForShutdown lifecycle methods.
  - Config: server configuration — listen address, read/write timeouts,
    idle timeout, max header size, and graceful-shutdown timeout.

# Capabilities

  - Non-blocking startup: Start/StartTLS run the server in a background
    goroutine; the caller never blocks.
  - Graceful shutdown: Shutdown drains in-flight requests and releases
    connections within the configured timeout.
  - Signal handling: WaitForShutdown listens for SIGINT/SIGTERM and
    triggers graceful shutdown automatically on receipt.
  - Error propagation: Errors() returns the asynchronous error channel so
    callers can monitor server failures.
  - TLS support: StartTLS takes a certificate and key file.
  - Status queries: IsRunning reports whether Shutdown has not yet been
    called (it is true before Start too); Addr returns the configured
    listen address, not the address a ":0" listener was bound to.
*/
package server
