// Package health runs named subsystem probes for the health endpoint.
package health

import (
	"context"
	"sync"
	"time"
)

// checkTimeout bounds a single probe so one stuck subsystem cannot hang
// the whole health endpoint.
var checkTimeout = 2 * time.Second

// Status is the outcome of one subsystem probe.
type Status struct {
	Name      string  `json:"name"`
	Healthy   bool    `json:"healthy"`
	Detail    string  `json:"detail,omitempty"`
	LatencyMS float64 `json:"latencyMs"`
}

// Checker probes one subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named probes and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named probe. Registration order is reporting order.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every probe and reports the aggregate plus per-subsystem
// results. A probe that misses its deadline counts as unhealthy.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, 0, len(checkers))

	for _, nc := range checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		st := runChecked(cctx, nc)
		cancel()

		st.Name = nc.name
		st.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
		if !st.Healthy {
			healthy = false
		}
		statuses = append(statuses, st)
	}

	return healthy, statuses
}

// runChecked runs a probe but gives up when its context deadline passes,
// leaving the late goroutine to finish in the background.
func runChecked(ctx context.Context, nc namedChecker) Status {
	done := make(chan Status, 1)
	go func() {
		done <- nc.check(ctx)
	}()

	select {
	case st := <-done:
		return st
	case <-ctx.Done():
		return Status{Healthy: false, Detail: "check timed out"}
	}
}
