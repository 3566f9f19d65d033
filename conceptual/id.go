package conceptual

// SegmentID identifies one segment within a loaded map.
// It is stable for the lifetime of the load.
type SegmentID string

func (s SegmentID) String() string {
	return string(s)
}

func (s SegmentID) IsEmpty() bool {
	return s == ""
}

// SessionID identifies one driving session on the web daemon.
type SessionID string

func (s SessionID) String() string {
	return string(s)
}

func (s SessionID) IsEmpty() bool {
	return s == ""
}
