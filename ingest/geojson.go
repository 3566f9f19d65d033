package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

// DecodeGeoJSON accepts any JSON object with a "features" array.
// A "type" member other than FeatureCollection is tolerated.
func DecodeGeoJSON(data []byte) ([]*geojson.Feature, error) {
	if !json.Valid(data) {
		var v any
		err := json.Unmarshal(data, &v)
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return nil, ErrInvalidGeoJSON
	}
	features := parsed.Get("features")
	if !features.IsArray() {
		return nil, ErrInvalidGeoJSON
	}

	if parsed.Get("type").String() == "FeatureCollection" {
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeoJSON, err)
		}
		return fc.Features, nil
	}

	out := make([]*geojson.Feature, 0, len(features.Array()))
	for i, el := range features.Array() {
		f, err := geojson.UnmarshalFeature([]byte(el.Raw))
		if err != nil {
			return nil, fmt.Errorf("%w: feature %d: %v", ErrInvalidGeoJSON, i, err)
		}
		out = append(out, f)
	}
	return out, nil
}
