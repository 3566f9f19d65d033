package state

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/paulmach/orb"
	"github.com/rotblauer/everystreet/types/segment"
)

type collectionKeyPart struct {
	ID     string
	Coords []orb.Point
	Bound  orb.Bound
}

// CollectionKey identifies a collection by its segment ids and geometry,
// so reloading the same file (under any name) finds the same history.
// Generated ids differ on every load and are left out.
func CollectionKey(segs segment.Segments) (string, error) {
	parts := make([]collectionKeyPart, 0, len(segs))
	for _, s := range segs {
		p := collectionKeyPart{}
		if id := s.ID(); !segment.IsGeneratedID(id) {
			p.ID = id.String()
		}
		if ls, ok := s.LineString(); ok {
			p.Coords = []orb.Point(ls)
		} else if s.Geometry != nil {
			p.Bound = s.Geometry.Bound()
		}
		parts = append(parts, p)
	}
	hash, err := hashstructure.Hash(parts, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("collection key: %w", err)
	}
	return fmt.Sprintf("%016x", hash), nil
}
