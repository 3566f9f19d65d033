package session

import (
	"sort"

	"github.com/rotblauer/everystreet/conceptual"
)

// CompletedSet holds the ids of segments completed in a session.
// It only grows until the next file load.
type CompletedSet map[conceptual.SegmentID]struct{}

func (c CompletedSet) Has(id conceptual.SegmentID) bool {
	_, ok := c[id]
	return ok
}

func (c CompletedSet) Add(id conceptual.SegmentID) {
	c[id] = struct{}{}
}

func (c CompletedSet) Len() int {
	return len(c)
}

// IDs returns the ids sorted.
func (c CompletedSet) IDs() []conceptual.SegmentID {
	out := make([]conceptual.SegmentID, 0, len(c))
	for id := range c {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
