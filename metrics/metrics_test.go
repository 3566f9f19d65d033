package metrics

import (
	"testing"
	"time"
)

func TestSummary(t *testing.T) {
	before := Completions.Snapshot().Count()
	Completions.Inc(2)
	RouteLatency.Update(150 * time.Millisecond)

	s := Summary()
	if got := s["segments.completed"].(int64); got != before+2 {
		t.Errorf("want %d completions, got %d", before+2, got)
	}
	lat, ok := s["route.latency"].(map[string]any)
	if !ok {
		t.Fatalf("route.latency: %#v", s["route.latency"])
	}
	if lat["count"].(int64) < 1 {
		t.Errorf("timer count: %v", lat["count"])
	}
}
