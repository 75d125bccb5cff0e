// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

/*
Package metrics provides end-to-end Prometheus instrumentation across six
domains: entry-point HTTP, classifier routing, load-balancer target
selection, upstream provider calls, the pipeline instance cache, and the
OAuth refresh daemon.

# Overview

Collector registers and records every Prometheus metric through promauto's
auto-registration, so nothing manages the Registry by hand. Metrics are
isolated by namespace and carry the label dimensions each domain needs,
ready for Grafana-style dashboards and alerting.

# Core types

  - Collector: the metrics registry, holding the Counter/Histogram/Gauge
    vectors for each domain grouped by business area.

# Capabilities

  - HTTP metrics: entry request totals and latency, grouped by endpoint
    and status.
  - Routing metrics: classifier routing decisions, load-balancer target
    selections (including direct-model-hit markers).
  - Provider metrics: upstream request totals, latency, and retry counts,
    grouped by provider/model.
  - Pipeline cache metrics: LRU hit/miss/eviction counts.
  - OAuth metrics: refresh attempt counts (by provider/mode/result) and a
    gauge of currently auto-suspended tokens.
*/
package metrics
