// Package metrics holds process-wide counters for fixes, completions and routing.
package metrics

import (
	"time"

	gethmetrics "github.com/ethereum/go-ethereum/metrics"
)

// Registry holds every metric in this package.
var Registry = gethmetrics.NewRegistry()

var (
	Fixes         = newCounter("fixes")
	FixErrors     = newCounter("fix.errors")
	FilesLoaded   = newCounter("files.loaded")
	FileErrors    = newCounter("files.errors")
	Arms          = newCounter("segments.armed")
	Completions   = newCounter("segments.completed")
	RouteRequests = newCounter("route.requests")
	RouteFailures = newCounter("route.failures")
	RouteLatency  = newTimer("route.latency")
)

// Metrics are no-ops unless enabled before construction.
func newCounter(name string) gethmetrics.Counter {
	gethmetrics.Enabled = true
	return gethmetrics.NewRegisteredCounter(name, Registry)
}

func newTimer(name string) gethmetrics.Timer {
	gethmetrics.Enabled = true
	return gethmetrics.NewRegisteredTimer(name, Registry)
}

// Summary is a point-in-time view of all metrics, keyed by name.
func Summary() map[string]any {
	out := map[string]any{}
	Registry.Each(func(name string, m any) {
		switch v := m.(type) {
		case gethmetrics.Counter:
			out[name] = v.Snapshot().Count()
		case gethmetrics.Timer:
			snap := v.Snapshot()
			out[name] = map[string]any{
				"count": snap.Count(),
				"mean":  time.Duration(snap.Mean()).String(),
				"p95":   time.Duration(snap.Percentile(0.95)).String(),
				"max":   time.Duration(snap.Max()).String(),
			}
		}
	})
	return out
}
