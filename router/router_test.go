package router

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/types/segment"
)

type completedSet map[conceptual.SegmentID]bool

func (c completedSet) Has(id conceptual.SegmentID) bool { return c[id] }

func line(id string, startLon, startLat float64) *segment.Segment {
	return segment.New(conceptual.SegmentID(id), orb.LineString{{startLon, startLat}, {startLon, startLat + 0.001}})
}

func fixture() segment.Segments {
	return segment.Segments{
		line("far", 0.05, 0),
		segment.New("point", orb.Point{0, 0}),
		line("near", 0.001, 0),
		line("tie", -0.001, 0),
		segment.New("stub", orb.LineString{{0, 0}}),
	}
}

func TestNearest(t *testing.T) {
	from := orb.Point{0, 0}
	got, err := Nearest(from, fixture(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != "near" {
		t.Errorf("want near (first of tie), got %s", got.ID())
	}

	got, err = Nearest(from, fixture(), completedSet{"near": true})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != "tie" {
		t.Errorf("want tie, got %s", got.ID())
	}

	_, err = Nearest(from, fixture(), completedSet{"near": true, "tie": true, "far": true})
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("want ErrNoCandidates, got %v", err)
	}
}

func TestNearest_NeverPicksCompleted(t *testing.T) {
	segs := fixture()
	completed := completedSet{}
	for i := 0; i < 3; i++ {
		got, err := Nearest(orb.Point{0, 0}, segs, completed)
		if err != nil {
			t.Fatal(err)
		}
		if completed[got.ID()] {
			t.Fatalf("picked completed segment %s", got.ID())
		}
		completed[got.ID()] = true
	}
	if _, err := Nearest(orb.Point{0, 0}, segs, completed); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("want ErrNoCandidates, got %v", err)
	}
}

func TestBatch_Cap(t *testing.T) {
	var segs segment.Segments
	for i := 0; i < 30; i++ {
		segs = append(segs, line(string(rune('a'+i)), float64(i)*0.01, 0))
	}
	for _, limit := range []int{0, 5, 11, 12, 100} {
		got, err := Batch(segs, nil, limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) > params.MaxBatchSegments {
			t.Errorf("limit %d: %d segments exceed cap", limit, len(got))
		}
		if wps := Waypoints(orb.Point{}, got); len(wps) > params.MaxWaypoints {
			t.Errorf("limit %d: %d waypoints exceed cap", limit, len(wps))
		}
	}
	got, _ := Batch(segs, completedSet{"a": true}, 2)
	if len(got) != 2 || got[0].ID() != "b" || got[1].ID() != "c" {
		t.Errorf("want stored order skipping completed, got %v", got.IDs())
	}
}

func TestSelect(t *testing.T) {
	from := orb.Point{0.0001, 0.0001}
	sel, err := Select(params.DefaultRouterConfig(), from, fixture(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Target().ID() != "near" || sel.Policy != params.RoutePolicyNearest {
		t.Errorf("selection: %+v", sel)
	}
	want := []orb.Point{from, {0.001, 0}, {0.001, 0.001}}
	if len(sel.Waypoints) != 3 {
		t.Fatalf("want 3 waypoints, got %v", sel.Waypoints)
	}
	for i := range want {
		if sel.Waypoints[i] != want[i] {
			t.Errorf("waypoint %d: want %v, got %v", i, want[i], sel.Waypoints[i])
		}
	}

	batch := params.RouterConfig{Policy: params.RoutePolicyBatch, BatchLimit: 11}
	sel, err = Select(batch, from, fixture(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Targets) != 3 || sel.Target().ID() != "far" || len(sel.Waypoints) != 7 {
		t.Errorf("batch selection: %v %v", sel.Targets.IDs(), sel.Waypoints)
	}

	if _, err := Select(params.RouterConfig{Policy: "zigzag"}, from, fixture(), nil); err == nil {
		t.Error("unknown policy must fail")
	}
}
