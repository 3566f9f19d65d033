// Package session owns the state of one user driving one map:
// the loaded segments, the latest fix, the current target,
// the completed set and the route being followed.
//
// All mutation goes through Session methods, which hold a single lock.
// Events are sent on the session feed after the lock is released.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/directions"
	"github.com/rotblauer/everystreet/ingest"
	"github.com/rotblauer/everystreet/metrics"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/router"
	"github.com/rotblauer/everystreet/state"
	"github.com/rotblauer/everystreet/stream"
	"github.com/rotblauer/everystreet/tracker"
	"github.com/rotblauer/everystreet/types/fix"
	"github.com/rotblauer/everystreet/types/segment"
)

// ErrRouteDiscarded is delivered to a route waiter when the segments
// were reloaded while the request was in flight.
var ErrRouteDiscarded = errors.New("route discarded after segments changed")

// Recorder persists completions. *state.History implements it.
type Recorder interface {
	RegisterCollection(key, fileName string, segments int, at time.Time) error
	RecordCompletion(key string, c state.Completion) error
}

type Config struct {
	Tracker params.TrackerConfig
	Router  params.RouterConfig

	// TrailSize is how many recent fixes are kept for display.
	TrailSize int
}

func DefaultConfig() Config {
	return Config{
		Tracker:   params.DefaultTrackerConfig(),
		Router:    params.DefaultRouterConfig(),
		TrailSize: 100,
	}
}

type Option func(*Session)

// WithProvider sets the directions provider.
// A session without one reports ErrNoCredentials when routing.
func WithProvider(p directions.Provider) Option {
	return func(s *Session) { s.provider = p }
}

func WithHistory(r Recorder) Option {
	return func(s *Session) { s.history = r }
}

// WithIDGenerator shares an id generator, e.g. with tests that need determinism.
func WithIDGenerator(g *segment.IDGenerator) Option {
	return func(s *Session) { s.ids = g }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

type Session struct {
	ID conceptual.SessionID

	cfg      Config
	provider directions.Provider
	history  Recorder
	ids      *segment.IDGenerator
	now      func() time.Time
	log      *slog.Logger
	feed     event.FeedOf[Event]
	routeWG  sync.WaitGroup

	mu sync.Mutex
	// gen changes on every load or file error; route results
	// from an older generation are dropped.
	gen           uint64
	segments      segment.Segments
	collectionKey string
	fileName      string
	uploadError   string
	status        string
	location      *fix.Fix
	state         tracker.State
	completed     CompletedSet
	selection     router.Selection
	route         *directions.Route
	routing       bool
	trail         *stream.Ring[fix.Fix]
}

func New(id conceptual.SessionID, cfg Config, opts ...Option) *Session {
	s := &Session{
		ID:        id,
		cfg:       cfg,
		ids:       segment.NewIDGenerator(),
		now:       time.Now,
		log:       slog.With("session", id.String()),
		status:    StatusInitial,
		completed: CompletedSet{},
		trail:     stream.NewRing[fix.Fix](cfg.TrailSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe delivers session events to ch. Subscribers must keep
// reading; a blocked subscriber blocks the session.
func (s *Session) Subscribe(ch chan<- Event) event.Subscription {
	return s.feed.Subscribe(ch)
}

func (s *Session) event(kind EventKind) Event {
	return Event{
		Kind:    kind,
		Session: s.ID,
		Time:    s.now(),
		Status:  s.status,
	}
}

func (s *Session) emit(evs ...Event) {
	for _, ev := range evs {
		s.feed.Send(ev)
	}
}

// resetLocked clears everything tied to the loaded segments.
func (s *Session) resetLocked() {
	s.gen++
	s.completed = CompletedSet{}
	s.state = tracker.State{}
	s.selection = router.Selection{}
	s.route = nil
}

// LoadFile decodes a GeoJSON or GPX file and loads its segments.
// A file that cannot be loaded clears the session as FileError does.
func (s *Session) LoadFile(name, contentType string, data []byte) error {
	feats, err := ingest.Decode(name, contentType, data)
	if err != nil {
		s.log.Warn("File rejected", "file", name, "error", err)
		s.FileError(FileErrorMessage(name, err))
		return err
	}
	s.LoadSegments(name, s.ids.Assign(feats))
	return nil
}

// LoadSegments replaces the loaded segments. The completed set, target
// and route are reset; history is never restored into the completed set.
func (s *Session) LoadSegments(name string, segs segment.Segments) {
	key, err := state.CollectionKey(segs)
	if err != nil {
		s.log.Warn("Failed to key collection, history disabled for it", "error", err)
	}

	s.mu.Lock()
	s.resetLocked()
	s.segments = segs
	s.collectionKey = key
	s.fileName = name
	s.uploadError = ""
	s.status = fmt.Sprintf("%s loaded: %d segments. Ready to route.", name, len(segs))
	ev := s.event(EventFileLoaded)
	ev.Total = len(segs)
	s.mu.Unlock()

	metrics.FilesLoaded.Inc(1)
	s.log.Info("Segments loaded", "file", name, "segments", len(segs), "collection", key)
	if s.history != nil && key != "" {
		if err := s.history.RegisterCollection(key, name, len(segs), ev.Time); err != nil {
			s.log.Error("Failed to register collection", "error", err)
		}
	}
	s.emit(ev)
}

// FileError clears the loaded segments and all state tied to them.
func (s *Session) FileError(msg string) {
	s.mu.Lock()
	s.resetLocked()
	s.segments = nil
	s.collectionKey = ""
	s.fileName = ""
	s.uploadError = msg
	s.status = "Error: " + msg
	ev := s.event(EventFileError)
	s.mu.Unlock()

	metrics.FileErrors.Inc(1)
	s.emit(ev)
}

// HandleFix records f as the current location and, when a target is set
// and no route is being computed, advances the completion tracker.
func (s *Session) HandleFix(f fix.Fix) tracker.Transition {
	metrics.Fixes.Inc(1)

	s.mu.Lock()
	loc := f
	s.location = &loc
	s.trail.Add(f)

	var evs []Event
	var rec *state.Completion
	key := s.collectionKey
	tr := tracker.TransitionNone

	if s.state.Target != nil && !s.routing {
		target := s.state.Target
		s.state, tr = s.state.Next(f, s.completed, s.cfg.Tracker)
		switch tr {
		case tracker.TransitionArmed:
			metrics.Arms.Inc(1)
			ev := s.event(EventArmed)
			ev.SegmentID, ev.Name = target.ID(), target.DisplayName()
			evs = append(evs, ev)
		case tracker.TransitionCompleted:
			metrics.Completions.Inc(1)
			s.completed.Add(target.ID())
			s.status = fmt.Sprintf(`Segment "%s" completed!`, target.DisplayName())
			s.advanceLocked()
			rec = &state.Completion{
				SegmentID: target.ID(),
				Name:      target.Name(),
				Session:   s.ID,
				Time:      s.now(),
			}
			ev := s.event(EventCompleted)
			ev.SegmentID, ev.Name = target.ID(), target.DisplayName()
			ev.Completed, ev.Total = s.completed.Len(), len(s.segments)
			evs = append(evs, ev)
		}
	} else if s.uploadError == "" && s.fileName == "" && !s.routing && !s.hasInstructionsLocked() {
		s.status = "Location: " + f.String()
	}
	evs = append([]Event{s.event(EventLocation)}, evs...)
	s.mu.Unlock()

	if tr == tracker.TransitionCompleted {
		s.log.Info("Segment completed", "segment", rec.SegmentID, "name", rec.Name)
		if s.history != nil && key != "" {
			if err := s.history.RecordCompletion(key, *rec); err != nil {
				s.log.Error("Failed to record completion", "segment", rec.SegmentID, "error", err)
			}
		}
	}
	s.emit(evs...)
	return tr
}

// advanceLocked moves past a completed target. A batch route carries on
// to its next uncompleted segment; otherwise the route is dropped.
func (s *Session) advanceLocked() {
	for _, next := range s.selection.Targets {
		if !s.completed.Has(next.ID()) {
			s.state = tracker.NewState(next)
			return
		}
	}
	s.state = tracker.State{}
	s.selection = router.Selection{}
	s.route = nil
}

func (s *Session) hasInstructionsLocked() bool {
	return s.route != nil && len(s.route.Steps) > 0
}

// HandleFixError forgets the current location.
func (s *Session) HandleFixError(err error) {
	metrics.FixErrors.Inc(1)
	s.mu.Lock()
	s.location = nil
	s.status = "Location Error: " + err.Error()
	ev := s.event(EventStatus)
	s.mu.Unlock()
	s.emit(ev)
}

// Run feeds fix events to the session until in closes or ctx is done.
func (s *Session) Run(ctx context.Context, in <-chan fix.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			switch {
			case ev.Err != nil:
				s.HandleFixError(ev.Err)
			case ev.Fix != nil:
				s.HandleFix(*ev.Fix)
			}
		}
	}
}

// StartRoute checks preconditions, selects targets and requests a route
// in the background. The returned channel yields the request's outcome
// once the session state has been updated. Precondition failures are
// returned immediately and change nothing but the status.
func (s *Session) StartRoute(ctx context.Context) (<-chan error, error) {
	s.mu.Lock()
	if s.routing {
		s.mu.Unlock()
		return nil, ErrRoutingInProgress
	}
	sel, err := s.selectLocked()
	if err != nil {
		if msg := precondition(err); msg != "" {
			s.status = msg
		} else {
			s.status = "Routing Error: " + err.Error()
		}
		ev := s.event(EventStatus)
		s.mu.Unlock()
		s.emit(ev)
		return nil, err
	}

	s.routing = true
	s.status = StatusCalculating
	s.route = nil
	s.selection = sel
	s.state = tracker.NewState(sel.Target())
	gen := s.gen
	provider := s.provider
	ev := s.event(EventStatus)
	s.routeWG.Add(1)
	s.mu.Unlock()

	metrics.RouteRequests.Inc(1)
	s.log.Info("Routing", "policy", sel.Policy, "target", sel.Target().ID(),
		"targets", len(sel.Targets), "waypoints", len(sel.Waypoints))
	s.emit(ev)

	done := make(chan error, 1)
	go func() {
		defer s.routeWG.Done()
		defer close(done)
		started := time.Now()
		r, err := provider.Route(ctx, sel.Waypoints)
		metrics.RouteLatency.UpdateSince(started)
		done <- s.finishRoute(gen, sel, r, err)
	}()
	return done, nil
}

func (s *Session) selectLocked() (router.Selection, error) {
	if len(s.segments) == 0 {
		return router.Selection{}, ErrNoSegments
	}
	if s.location == nil {
		return router.Selection{}, ErrNoLocation
	}
	if s.provider == nil {
		return router.Selection{}, ErrNoCredentials
	}
	sel, err := router.Select(s.cfg.Router, s.location.Point(), s.segments, s.completed)
	if errors.Is(err, router.ErrNoCandidates) {
		if s.completed.Len() == len(s.segments) {
			return sel, ErrAllCompleted
		}
		return sel, ErrNoUndriven
	}
	return sel, err
}

func (s *Session) finishRoute(gen uint64, sel router.Selection, r *directions.Route, err error) error {
	s.mu.Lock()
	s.routing = false
	if gen != s.gen {
		s.mu.Unlock()
		s.log.Info("Dropping route for replaced segments", "error", err)
		return ErrRouteDiscarded
	}

	var ev Event
	if err != nil {
		metrics.RouteFailures.Inc(1)
		s.route = nil
		s.selection = router.Selection{}
		s.state = tracker.State{}
		s.status = "Routing Error: " + err.Error()
		ev = s.event(EventRouteFailed)
	} else {
		s.route = r
		if len(sel.Targets) > 1 {
			s.status = fmt.Sprintf("Route through %d segments calculated. (%.1f mi).", len(sel.Targets), r.Miles())
		} else {
			s.status = fmt.Sprintf(`Route to "%s" calculated. (%.1f mi).`, sel.Target().DisplayName(), r.Miles())
		}
		ev = s.event(EventRouteReady)
		ev.Distance = r.Distance
	}
	ev.SegmentID, ev.Name = sel.Target().ID(), sel.Target().DisplayName()
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Routing failed", "error", err)
	}
	s.emit(ev)
	return err
}

// WaitRoute blocks until no route request is in flight.
func (s *Session) WaitRoute() {
	s.routeWG.Wait()
}

// Route is StartRoute followed by waiting for its outcome.
func (s *Session) Route(ctx context.Context) error {
	done, err := s.StartRoute(ctx)
	if err != nil {
		return err
	}
	return <-done
}

// Status is the current status line.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Target() tracker.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Completed() []conceptual.SegmentID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed.IDs()
}

func (s *Session) CollectionKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectionKey
}

// RouteFeature is the current route geometry, or nil.
func (s *Session) RouteFeature() *geojson.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.route == nil {
		return nil
	}
	return s.route.Feature()
}

// SegmentsFeatureCollection returns the loaded segments with
// "completed" and "target" properties for display.
func (s *Session) SegmentsFeatureCollection() *geojson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc := s.segments.FeatureCollection()
	var targetID conceptual.SegmentID
	if s.state.Target != nil {
		targetID = s.state.Target.ID()
	}
	for i, f := range fc.Features {
		id := s.segments[i].ID()
		f.Properties["completed"] = s.completed.Has(id)
		f.Properties["target"] = targetID != "" && id == targetID
	}
	return fc
}

// Snapshot is a copy of the session state for presentation.
type Snapshot struct {
	ID           conceptual.SessionID   `json:"id"`
	FileName     string                 `json:"file_name"`
	UploadError  string                 `json:"upload_error,omitempty"`
	Status       string                 `json:"status"`
	Location     *fix.Fix               `json:"location,omitempty"`
	Phase        string                 `json:"phase"`
	TargetID     conceptual.SegmentID   `json:"target_id,omitempty"`
	TargetName   string                 `json:"target_name,omitempty"`
	NearStart    bool                   `json:"near_start"`
	Routing      bool                   `json:"routing"`
	Policy       params.RoutePolicy     `json:"policy,omitempty"`
	Targets      []conceptual.SegmentID `json:"targets,omitempty"`
	RouteMeters  float64                `json:"route_meters,omitempty"`
	RouteSeconds float64                `json:"route_seconds,omitempty"`
	Instructions []directions.Step      `json:"instructions"`
	Segments     int                    `json:"segments"`
	Trackable    int                    `json:"trackable"`
	Completed    []conceptual.SegmentID `json:"completed"`
	CanRoute     bool                   `json:"can_route"`
	AllDone      bool                   `json:"all_done"`
	Trail        []fix.Fix              `json:"trail,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.ID,
		FileName:     s.fileName,
		UploadError:  s.uploadError,
		Status:       s.status,
		Phase:        s.state.Phase(),
		NearStart:    s.state.NearStart,
		Routing:      s.routing,
		Instructions: []directions.Step{},
		Segments:     len(s.segments),
		Completed:    s.completed.IDs(),
		Trail:        s.trail.Get(),
	}
	if s.location != nil {
		loc := *s.location
		snap.Location = &loc
	}
	if s.state.Target != nil {
		snap.TargetID = s.state.Target.ID()
		snap.TargetName = s.state.Target.DisplayName()
	}
	if len(s.selection.Targets) > 0 {
		snap.Policy = s.selection.Policy
		snap.Targets = s.selection.Targets.IDs()
	}
	if s.route != nil {
		snap.RouteMeters = s.route.Distance
		snap.RouteSeconds = s.route.Duration
		snap.Instructions = slices.Clone(s.route.Steps)
	}
	for _, seg := range s.segments {
		if seg.IsTrackable() {
			snap.Trackable++
		}
	}
	snap.AllDone = len(s.segments) > 0 && s.completed.Len() == len(s.segments)
	snap.CanRoute = len(s.segments) > 0 && s.location != nil && !s.routing &&
		s.provider != nil && !snap.AllDone
	return snap
}
