package tracker

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/stream"
	"github.com/rotblauer/everystreet/types/fix"
	"github.com/rotblauer/everystreet/types/segment"
)

type completedSet map[conceptual.SegmentID]bool

func (c completedSet) Has(id conceptual.SegmentID) bool { return c[id] }

// About 111 meters due north from the origin.
func northSegment() *segment.Segment {
	return segment.New("north", orb.LineString{{0, 0}, {0, 0.001}})
}

func at(lat, lon float64) fix.Fix {
	return fix.Fix{Lat: lat, Lon: lon}
}

var (
	nearEnd   = at(0.00095, 0) // ~18 ft from end, ~347 ft from start
	nearStart = at(0.00005, 0) // ~18 ft from start, ~347 ft from end
	farAway   = at(0.01, 0.01)
)

func run(s State, fixes ...fix.Fix) (State, []Transition) {
	cfg := params.DefaultTrackerConfig()
	var trs []Transition
	for _, f := range fixes {
		var tr Transition
		s, tr = s.Next(f, completedSet{}, cfg)
		trs = append(trs, tr)
	}
	return s, trs
}

func TestNext_EndBeforeStartNeverCompletes(t *testing.T) {
	s, trs := run(NewState(northSegment()), nearEnd, nearEnd, farAway, nearEnd)
	for i, tr := range trs {
		if tr != TransitionNone {
			t.Errorf("fix %d: want none, got %v", i, tr)
		}
	}
	if s.Idle() || s.NearStart {
		t.Errorf("want approaching, got %s", s.Phase())
	}
}

func TestNext_StartThenEndCompletesOnce(t *testing.T) {
	s, trs := run(NewState(northSegment()), nearEnd, nearStart, farAway, nearEnd, nearEnd)
	want := []Transition{TransitionNone, TransitionArmed, TransitionNone, TransitionCompleted, TransitionNone}
	for i := range want {
		if trs[i] != want[i] {
			t.Errorf("fix %d: want %v, got %v", i, want[i], trs[i])
		}
	}
	if !s.Idle() {
		t.Errorf("want idle after completion, got %s", s.Phase())
	}
}

func TestNext_NearStartIsSticky(t *testing.T) {
	s, _ := run(NewState(northSegment()), nearStart, farAway, farAway)
	if !s.NearStart || s.Phase() != "armed" {
		t.Errorf("near-start must not reset while targeting, got %s", s.Phase())
	}
}

func TestNext_AlreadyCompletedDoesNotFire(t *testing.T) {
	cfg := params.DefaultTrackerConfig()
	s := State{Target: northSegment(), NearStart: true}
	next, tr := s.Next(nearEnd, completedSet{"north": true}, cfg)
	if tr != TransitionNone || next.Idle() {
		t.Errorf("want no completion, got %v (%s)", tr, next.Phase())
	}
}

func TestNext_ShortSegmentArmsAndCompletesInOneFix(t *testing.T) {
	// ~11 meters long, both endpoints inside both radii.
	short := segment.New("short", orb.LineString{{0, 0}, {0, 0.0001}})
	_, trs := run(NewState(short), at(0.00005, 0))
	if trs[0] != TransitionCompleted {
		t.Errorf("want completed, got %v", trs[0])
	}
}

func TestNext_Thresholds(t *testing.T) {
	cfg := params.DefaultTrackerConfig()
	// 0.0004 deg lat is ~146 ft, 0.00042 is ~153 ft.
	s := NewState(segment.New("long", orb.LineString{{0, 0}, {0, 0.01}}))
	if next, tr := s.Next(at(0.00042, 0), nil, cfg); tr != TransitionNone || next.NearStart {
		t.Errorf("153 ft must not arm, got %v", tr)
	}
	if next, tr := s.Next(at(0.0004, 0), nil, cfg); tr != TransitionArmed || !next.NearStart {
		t.Errorf("146 ft must arm, got %v", tr)
	}

	armed := State{Target: s.Target, NearStart: true}
	// 0.00028 deg is ~102 ft, 0.00027 is ~98.5 ft.
	if _, tr := armed.Next(at(0.01-0.00028, 0), nil, cfg); tr != TransitionNone {
		t.Errorf("102 ft from end must not complete, got %v", tr)
	}
	if _, tr := armed.Next(at(0.01-0.00027, 0), nil, cfg); tr != TransitionCompleted {
		t.Errorf("98 ft from end must complete, got %v", tr)
	}
}

func TestNext_UntrackableTargets(t *testing.T) {
	cfg := params.DefaultTrackerConfig()
	for _, target := range []*segment.Segment{
		segment.New("point", orb.Point{0, 0}),
		segment.New("one", orb.LineString{{0, 0}}),
	} {
		s := State{Target: target, NearStart: true}
		next, tr := s.Next(at(0, 0), nil, cfg)
		if tr != TransitionNone || next != s {
			t.Errorf("%s: want unchanged state, got %v", target.ID(), tr)
		}
	}
	if _, tr := (State{}).Next(at(0, 0), nil, cfg); tr != TransitionNone {
		t.Error("idle state must not transition")
	}
}

func TestMeasure(t *testing.T) {
	d, ok := NewState(northSegment()).Measure(nearEnd)
	if !ok {
		t.Fatal("want ok")
	}
	if d.ToEnd < 17 || d.ToEnd > 19.5 {
		t.Errorf("to end: %v", d.ToEnd)
	}
	if d.ToStart < 345 || d.ToStart > 348 {
		t.Errorf("to start: %v", d.ToStart)
	}
}

func TestStream(t *testing.T) {
	ctx := context.Background()
	in := stream.Slice(ctx, []fix.Fix{nearEnd, nearStart, nearEnd, nearStart})
	steps := stream.Collect(ctx, NewState(northSegment()).Stream(ctx, in, completedSet{}, params.DefaultTrackerConfig()))
	if len(steps) != 3 {
		t.Fatalf("stream must stop at completion, got %d steps", len(steps))
	}
	if steps[1].Transition != TransitionArmed || steps[2].Transition != TransitionCompleted {
		t.Errorf("unexpected transitions: %v %v", steps[1].Transition, steps[2].Transition)
	}
	if !steps[2].State.Idle() {
		t.Error("want idle after completion")
	}
}
