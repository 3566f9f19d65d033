package session

import (
	"errors"
	"fmt"

	"github.com/rotblauer/everystreet/ingest"
)

var (
	ErrNoSegments        = errors.New("no segments loaded")
	ErrNoLocation        = errors.New("user location not available")
	ErrNoCredentials     = errors.New("directions access token not set")
	ErrAllCompleted      = errors.New("all segments completed")
	ErrNoUndriven        = errors.New("no undriven segments found")
	ErrRoutingInProgress = errors.New("routing already in progress")
)

// Status lines shown to the user.
const (
	StatusInitial        = "Please upload a file to begin."
	StatusNoSegments     = "No segments loaded."
	StatusNoLocation     = "User location not available."
	StatusNoCredentials  = "Mapbox Access Token for Directions not set."
	StatusCalculating    = "Calculating route..."
	StatusAllCompleted   = "All segments completed!"
	StatusNoUndriven     = "No undriven segments found."
	StatusNoFileSelected = "No file selected."
	StatusUnsupported    = "Unsupported file type. Please upload a GeoJSON or GPX file."
	StatusInvalidGeoJSON = "Invalid GeoJSON structure. Expected a FeatureCollection."
)

// precondition maps route precondition errors to their status line.
func precondition(err error) string {
	switch {
	case errors.Is(err, ErrNoSegments):
		return StatusNoSegments
	case errors.Is(err, ErrNoLocation):
		return StatusNoLocation
	case errors.Is(err, ErrNoCredentials):
		return StatusNoCredentials
	case errors.Is(err, ErrAllCompleted):
		return StatusAllCompleted
	case errors.Is(err, ErrNoUndriven):
		return StatusNoUndriven
	}
	return ""
}

// FileErrorMessage is the upload error shown for a file that failed to load.
func FileErrorMessage(fileName string, err error) string {
	switch {
	case errors.Is(err, ingest.ErrNoFile):
		return StatusNoFileSelected
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return StatusUnsupported
	case errors.Is(err, ingest.ErrInvalidGeoJSON):
		return fmt.Sprintf(`Error processing file "%s": %s`, fileName, StatusInvalidGeoJSON)
	}
	return fmt.Sprintf(`Error processing file "%s": %v`, fileName, err)
}
