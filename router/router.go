// Package router picks which uncompleted segments to drive next
// and lays out the waypoints for a directions request.
package router

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/rotblauer/everystreet/common"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/tracker"
	"github.com/rotblauer/everystreet/types/segment"
)

// ErrNoCandidates means every trackable segment is already completed,
// or there were no trackable segments at all.
var ErrNoCandidates = errors.New("no uncompleted segments")

// Selection is the outcome of target selection.
type Selection struct {
	Policy params.RoutePolicy

	// Targets are the segments the route drives, in order.
	// The first is the one tracked for completion.
	Targets segment.Segments

	// Waypoints start at the user and visit each target's start then end.
	Waypoints []orb.Point
}

// Target is the segment tracked for completion.
func (s Selection) Target() *segment.Segment {
	if len(s.Targets) == 0 {
		return nil
	}
	return s.Targets[0]
}

// Candidates are the trackable, uncompleted segments in stored order.
func Candidates(segs segment.Segments, completed tracker.Completed) segment.Segments {
	out := make(segment.Segments, 0, len(segs))
	for _, s := range segs {
		if !s.IsTrackable() {
			continue
		}
		if completed != nil && completed.Has(s.ID()) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Nearest returns the candidate whose start is closest to from.
// The first encountered wins a tie.
func Nearest(from orb.Point, segs segment.Segments, completed tracker.Completed) (*segment.Segment, error) {
	var best *segment.Segment
	bestDist := math.Inf(1)
	for _, s := range Candidates(segs, completed) {
		d := common.Haversine(from, s.Start(), common.UnitMeters)
		if d < bestDist {
			bestDist = d
			best = s
		}
	}
	if best == nil {
		return nil, ErrNoCandidates
	}
	return best, nil
}

// Batch returns up to limit candidates in stored order.
// limit is clamped to what a single request can carry.
func Batch(segs segment.Segments, completed tracker.Completed, limit int) (segment.Segments, error) {
	if limit <= 0 || limit > params.MaxBatchSegments {
		limit = params.MaxBatchSegments
	}
	cands := Candidates(segs, completed)
	if len(cands) == 0 {
		return nil, ErrNoCandidates
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

// Waypoints lays out from, then each segment's start and end.
func Waypoints(from orb.Point, targets segment.Segments) []orb.Point {
	out := make([]orb.Point, 0, 1+2*len(targets))
	out = append(out, from)
	for _, s := range targets {
		out = append(out, s.Start(), s.End())
	}
	return out
}

// Select applies the configured policy.
func Select(cfg params.RouterConfig, from orb.Point, segs segment.Segments, completed tracker.Completed) (Selection, error) {
	sel := Selection{Policy: cfg.Policy}
	switch cfg.Policy {
	case params.RoutePolicyBatch:
		targets, err := Batch(segs, completed, cfg.BatchLimit)
		if err != nil {
			return sel, err
		}
		sel.Targets = targets
	case params.RoutePolicyNearest, "":
		sel.Policy = params.RoutePolicyNearest
		target, err := Nearest(from, segs, completed)
		if err != nil {
			return sel, err
		}
		sel.Targets = segment.Segments{target}
	default:
		return sel, fmt.Errorf("unknown route policy %q", cfg.Policy)
	}
	sel.Waypoints = Waypoints(from, sel.Targets)
	return sel, nil
}
