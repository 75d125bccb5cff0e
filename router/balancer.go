package router

import (
	"errors"
	"sync"
)

// ErrNoTargets is returned when a route resolves to an empty pool; the
// caller is expected to raise this as a user-facing "no targets" error.
var ErrNoTargets = errors.New("router: no targets configured for route")

// group is one providerId.modelId bucket within a route, holding its own
// ordered key list and a private round-robin cursor.
type group struct {
	providerID string
	modelID    string
	keys       []Target // one Target per keyId, same providerID/modelID
	keyIdx     int
}

// routeState is the per-route mutable selection state: an ordered list of
// groups plus the pool-level cursor that walks across them.
type routeState struct {
	groups  []*group
	poolIdx int
}

// Balancer implements the spec's two-layer round-robin: requests advance a
// per-route group cursor, and within the selected group a per-group key
// cursor. A direct model-name hint shortcuts straight to the first target
// bearing that model, advancing both indices past it so the rotation stays
// consistent for subsequent callers.
type Balancer struct {
	mu     sync.Mutex
	pool   Pool
	routes map[string]*routeState
}

// New builds a Balancer over pool. The pool is copied; later calls to
// Reset rebuild from this snapshot.
func New(pool Pool) *Balancer {
	b := &Balancer{pool: pool.Clone()}
	b.rebuild()
	return b
}

func (b *Balancer) rebuild() {
	b.routes = make(map[string]*routeState, len(b.pool))
	for route, targets := range b.pool {
		b.routes[route] = buildRouteState(targets)
	}
}

func buildRouteState(targets []Target) *routeState {
	order := []string{}
	byGroup := map[string]*group{}
	for _, t := range targets {
		gk := t.GroupKey()
		g, ok := byGroup[gk]
		if !ok {
			g = &group{providerID: t.ProviderID, modelID: t.ModelID}
			byGroup[gk] = g
			order = append(order, gk)
		}
		g.keys = append(g.keys, t)
	}
	groups := make([]*group, 0, len(order))
	for _, gk := range order {
		groups = append(groups, byGroup[gk])
	}
	return &routeState{groups: groups}
}

// Select resolves route to a concrete Target. requestedModel, when
// non-empty, triggers the direct-match shortcut if it names a modelId
// present in the pool. Returns ErrNoTargets if the route has zero targets.
func (b *Balancer) Select(route, requestedModel string) (Target, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rs, ok := b.routes[route]
	if !ok || len(rs.groups) == 0 {
		return Target{}, ErrNoTargets
	}

	if requestedModel != "" {
		if t, ok := b.selectDirect(rs, requestedModel); ok {
			return t, nil
		}
	}

	// Singleton pool: one group, one key. Return immediately without
	// touching any index (nothing to rotate across).
	if len(rs.groups) == 1 && len(rs.groups[0].keys) == 1 {
		return rs.groups[0].keys[0], nil
	}

	g := rs.groups[rs.poolIdx%len(rs.groups)]
	t := g.keys[g.keyIdx%len(g.keys)]
	g.keyIdx = (g.keyIdx + 1) % len(g.keys)
	rs.poolIdx = (rs.poolIdx + 1) % len(rs.groups)
	return t, nil
}

// selectDirect implements the direct-model shortcut: if requestedModel
// names a modelId present anywhere in the route's pool, that target is
// returned and both the owning group's key index and the route's pool
// index are advanced past it, so subsequent round-robin calls keep
// rotating consistently.
func (b *Balancer) selectDirect(rs *routeState, requestedModel string) (Target, bool) {
	for gi, g := range rs.groups {
		if g.modelID != requestedModel {
			continue
		}
		for ki, t := range g.keys {
			if t.ModelID != requestedModel {
				continue
			}
			g.keyIdx = (ki + 1) % len(g.keys)
			rs.poolIdx = (gi + 1) % len(rs.groups)
			return t, true
		}
	}
	return Target{}, false
}

// Reset clears the round-robin indices for a single route and rebuilds its
// group/key ordering from the original pool snapshot. Intended for test
// isolation between cases that share a Balancer.
func (b *Balancer) Reset(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	targets, ok := b.pool[route]
	if !ok {
		delete(b.routes, route)
		return
	}
	b.routes[route] = buildRouteState(targets)
}

// ResetAll rebuilds every route's state from the original pool snapshot.
func (b *Balancer) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebuild()
}
