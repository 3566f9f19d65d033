package session

import (
	"time"

	"github.com/rotblauer/everystreet/conceptual"
)

type EventKind string

const (
	EventStatus      EventKind = "status"
	EventFileLoaded  EventKind = "file_loaded"
	EventFileError   EventKind = "file_error"
	EventLocation    EventKind = "location"
	EventArmed       EventKind = "armed"
	EventCompleted   EventKind = "completed"
	EventRouteReady  EventKind = "route_ready"
	EventRouteFailed EventKind = "route_failed"
)

// Event is sent on a session's feed after its state changes.
type Event struct {
	Kind      EventKind            `json:"kind"`
	Session   conceptual.SessionID `json:"session"`
	Time      time.Time            `json:"time"`
	Status    string               `json:"status"`
	SegmentID conceptual.SegmentID `json:"segment_id,omitempty"`
	Name      string               `json:"name,omitempty"`

	// Distance is the route distance in meters, for EventRouteReady.
	Distance float64 `json:"distance,omitempty"`

	// Completed and Total count segments, for EventCompleted and EventFileLoaded.
	Completed int `json:"completed,omitempty"`
	Total     int `json:"total,omitempty"`
}
