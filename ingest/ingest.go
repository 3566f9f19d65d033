// Package ingest turns uploaded map files into segment features
// and device logs into location fixes.
package ingest

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

var (
	ErrNoFile              = errors.New("no file selected")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrInvalidGeoJSON      = errors.New("invalid geojson structure, expected a FeatureCollection")
	ErrInvalidGPX          = errors.New("invalid gpx")
)

type Format int

const (
	FormatUnknown Format = iota
	FormatGeoJSON
	FormatGPX
)

const (
	MIMEGeoJSON = "application/geo+json"
	MIMEGPX     = "application/gpx+xml"
)

func (f Format) String() string {
	switch f {
	case FormatGeoJSON:
		return "geojson"
	case FormatGPX:
		return "gpx"
	}
	return "unknown"
}

// DetectFormat picks a format from a file name, falling back to a content type.
func DetectFormat(name, contentType string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".geojson", ".json":
		return FormatGeoJSON
	case ".gpx":
		return FormatGPX
	}
	if contentType == "" {
		return FormatUnknown
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatUnknown
	}
	switch mt {
	case MIMEGeoJSON:
		return FormatGeoJSON
	case MIMEGPX:
		return FormatGPX
	}
	return FormatUnknown
}

// Decode reads a map file into features. Identifiers are not assigned here.
func Decode(name, contentType string, data []byte) ([]*geojson.Feature, error) {
	if name == "" && len(data) == 0 {
		return nil, ErrNoFile
	}
	switch DetectFormat(name, contentType) {
	case FormatGeoJSON:
		return DecodeGeoJSON(data)
	case FormatGPX:
		return DecodeGPX(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, name)
}
