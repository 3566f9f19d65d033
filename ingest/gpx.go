package ingest

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"
)

// DecodeGPX makes one line string feature per track segment and per route.
// Parts with fewer than two points are skipped.
func DecodeGPX(data []byte) ([]*geojson.Feature, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGPX, err)
	}

	var out []*geojson.Feature
	for ti, track := range g.Tracks {
		name := track.Name
		if name == "" {
			name = fmt.Sprintf("Track %d", ti+1)
		}
		for si, seg := range track.Segments {
			ls := lineString(seg.Points)
			if len(ls) < 2 {
				continue
			}
			f := geojson.NewFeature(ls)
			f.Properties["name"] = name
			if len(track.Segments) > 1 {
				f.Properties["name"] = fmt.Sprintf("%s #%d", name, si+1)
			}
			f.Properties["source"] = "trk"
			out = append(out, f)
		}
	}
	for ri, route := range g.Routes {
		ls := lineString(route.Points)
		if len(ls) < 2 {
			continue
		}
		f := geojson.NewFeature(ls)
		f.Properties["name"] = route.Name
		if route.Name == "" {
			f.Properties["name"] = fmt.Sprintf("Route %d", ri+1)
		}
		f.Properties["source"] = "rte"
		out = append(out, f)
	}
	return out, nil
}

func lineString(points []gpx.GPXPoint) orb.LineString {
	ls := make(orb.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, orb.Point{p.Longitude, p.Latitude})
	}
	return ls
}
