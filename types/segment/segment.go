package segment

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/everystreet/conceptual"
)

const (
	// IDProperty holds the identifier assigned at load time.
	IDProperty = "unique_app_id"

	// NameProperty holds an optional display name.
	NameProperty = "name"
)

// Segment is a drivable stretch of street.
// It's an alias of geojson.Feature whose identifier lives in the
// IDProperty property. Geometry is normally a LineString with
// at least two coordinates; other geometries are carried along
// but never targeted or evaluated.
type Segment geojson.Feature

// New wraps geometry in a Segment with the given id.
func New(id conceptual.SegmentID, geometry orb.Geometry) *Segment {
	s := &Segment{
		Type:       "Feature",
		Geometry:   geometry,
		Properties: geojson.Properties{IDProperty: id.String()},
	}
	return s
}

type Segments []*Segment

func (s *Segment) ID() conceptual.SegmentID {
	if s == nil || s.Properties == nil {
		return ""
	}
	v, _ := s.Properties[IDProperty].(string)
	return conceptual.SegmentID(v)
}

// Name returns the segment's display name, or "" when it has none.
func (s *Segment) Name() string {
	if s == nil || s.Properties == nil {
		return ""
	}
	v, ok := s.Properties[NameProperty]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// DisplayName is Name, falling back to "Segment ID <id>".
func (s *Segment) DisplayName() string {
	if n := s.Name(); n != "" {
		return n
	}
	return "Segment ID " + s.ID().String()
}

// LineString returns the segment's geometry when it is a line string.
func (s *Segment) LineString() (orb.LineString, bool) {
	if s == nil || s.Geometry == nil {
		return nil, false
	}
	ls, ok := s.Geometry.(orb.LineString)
	return ls, ok
}

// IsTrackable reports whether the segment can be a target:
// a line string with at least two coordinates.
func (s *Segment) IsTrackable() bool {
	ls, ok := s.LineString()
	return ok && len(ls) >= 2
}

// Start is the first coordinate. Only meaningful if IsTrackable.
func (s *Segment) Start() orb.Point {
	ls, _ := s.LineString()
	if len(ls) == 0 {
		return orb.Point{}
	}
	return ls[0]
}

// End is the last coordinate. Only meaningful if IsTrackable.
func (s *Segment) End() orb.Point {
	ls, _ := s.LineString()
	if len(ls) == 0 {
		return orb.Point{}
	}
	return ls[len(ls)-1]
}

// LengthMeters is the geodesic length of a line string segment, else 0.
func (s *Segment) LengthMeters() float64 {
	ls, ok := s.LineString()
	if !ok {
		return 0
	}
	return geo.Length(ls)
}

// Feature returns a shallow copy as a geojson.Feature with cloned properties.
func (s *Segment) Feature() *geojson.Feature {
	f := geojson.Feature(*s)
	f.Properties = s.Properties.Clone()
	return &f
}

// SetPropertySafe sets a property on a copy of the properties map,
// so readers holding the old map are unaffected.
func (s *Segment) SetPropertySafe(key string, val any) {
	p := s.Properties.Clone()
	if p == nil {
		p = geojson.Properties{}
	}
	p[key] = val
	s.Properties = p
}

// MarshalJSON implements the json.Marshaler interface.
func (s Segment) MarshalJSON() ([]byte, error) {
	f := geojson.Feature(s)
	return f.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Segment) UnmarshalJSON(data []byte) error {
	f, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return err
	}
	*s = *(*Segment)(f)
	return nil
}

// FeatureCollection wraps segments for encoding.
func (ss Segments) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, s := range ss {
		fc.Append(s.Feature())
	}
	return fc
}

// IDs lists segment ids in stored order.
func (ss Segments) IDs() []conceptual.SegmentID {
	out := make([]conceptual.SegmentID, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.ID())
	}
	return out
}

// ByID returns the segment with the given id, or nil.
func (ss Segments) ByID(id conceptual.SegmentID) *Segment {
	for _, s := range ss {
		if s.ID() == id {
			return s
		}
	}
	return nil
}
