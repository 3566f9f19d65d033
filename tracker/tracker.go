// Package tracker decides when a targeted segment has been driven.
//
// A target is armed once a fix comes within the arming radius of its
// start, and completed once a later (or the same) fix comes within the
// completion radius of its end. Reaching the end before the start
// never completes a segment.
package tracker

import (
	"context"

	"github.com/rotblauer/everystreet/common"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/types/fix"
	"github.com/rotblauer/everystreet/types/segment"
)

// Completed reports whether a segment has already been completed.
type Completed interface {
	Has(id conceptual.SegmentID) bool
}

type Transition int

const (
	TransitionNone Transition = iota
	// TransitionArmed is the first fix near the target's start.
	TransitionArmed
	// TransitionCompleted is the fix that finished the target.
	TransitionCompleted
)

func (t Transition) String() string {
	switch t {
	case TransitionArmed:
		return "armed"
	case TransitionCompleted:
		return "completed"
	}
	return "none"
}

// State is the current target and whether its start has been reached.
// The zero value is idle.
type State struct {
	Target    *segment.Segment
	NearStart bool
}

// NewState targets seg, unarmed.
func NewState(seg *segment.Segment) State {
	return State{Target: seg}
}

func (s State) Idle() bool {
	return s.Target == nil
}

// Phase names the state for logs and snapshots.
func (s State) Phase() string {
	switch {
	case s.Target == nil:
		return "idle"
	case s.NearStart:
		return "armed"
	}
	return "approaching"
}

// Distances are from a fix to the target's endpoints, in feet.
type Distances struct {
	ToStart float64
	ToEnd   float64
}

// Measure returns distances from f to the target's first and last coordinates.
// ok is false when there is no trackable target.
func (s State) Measure(f fix.Fix) (d Distances, ok bool) {
	if s.Target == nil || !s.Target.IsTrackable() {
		return d, false
	}
	p := f.Point()
	d.ToStart = common.Haversine(p, s.Target.Start(), common.UnitFeet)
	d.ToEnd = common.Haversine(p, s.Target.End(), common.UnitFeet)
	return d, true
}

// Next evaluates one fix against the target.
// Arming is checked before completion, so a single fix inside both
// radii of a short segment arms and completes it.
// A completed target returns the idle state; the caller is
// responsible for recording the completion.
func (s State) Next(f fix.Fix, completed Completed, cfg params.TrackerConfig) (State, Transition) {
	d, ok := s.Measure(f)
	if !ok {
		return s, TransitionNone
	}

	tr := TransitionNone
	if !s.NearStart && d.ToStart < cfg.ArmingRadiusFeet() {
		s.NearStart = true
		tr = TransitionArmed
	}

	if s.NearStart && d.ToEnd < cfg.CompletionThresholdFeet {
		if completed != nil && completed.Has(s.Target.ID()) {
			return s, tr
		}
		return State{}, TransitionCompleted
	}
	return s, tr
}

// Step is the result of one fix passed through Stream.
type Step struct {
	Fix        fix.Fix
	State      State
	Transition Transition
}

// Stream runs fixes through Next starting from s, emitting one Step per fix.
// The stream stops at the first completion, or when in closes or ctx is done.
func (s State) Stream(ctx context.Context, in <-chan fix.Fix, completed Completed, cfg params.TrackerConfig) <-chan Step {
	out := make(chan Step)
	go func() {
		defer close(out)
		state := s
		for f := range in {
			var tr Transition
			state, tr = state.Next(f, completed, cfg)
			select {
			case <-ctx.Done():
				return
			case out <- Step{Fix: f, State: state, Transition: tr}:
			}
			if tr == TransitionCompleted {
				return
			}
		}
	}()
	return out
}
