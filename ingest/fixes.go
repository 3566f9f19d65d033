package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rotblauer/everystreet/types/fix"
	"github.com/tidwall/gjson"
	"github.com/tkrajina/gpxgo/gpx"
)

// ErrFixLine is returned for an NDJSON line that holds no fix.
var ErrFixLine = errors.New("unreadable fix line")

// LocationError is a device-reported failure to get a fix,
// read from a line like {"error":"User denied Geolocation"}.
type LocationError struct {
	Message string
}

func (e *LocationError) Error() string {
	return e.Message
}

// DecodeFixLine reads one JSON object as a fix event.
// Accepted shapes:
//
//	{"lat":..,"lon":..,"accuracy":..,"heading":..,"time":..}
//	{"type":"Feature","geometry":{"type":"Point","coordinates":[lon,lat]},"properties":{"Accuracy":..,"Heading":..,"Time":..}}
//	{"error":"message"}
func DecodeFixLine(line []byte) (fix.Event, error) {
	if msg := gjson.GetBytes(line, "error"); msg.Exists() {
		return fix.Event{Err: &LocationError{Message: msg.String()}}, nil
	}
	if coords := gjson.GetBytes(line, "geometry.coordinates"); coords.IsArray() {
		arr := coords.Array()
		if len(arr) < 2 {
			return fix.Event{}, fmt.Errorf("%w: point has %d coordinates", ErrFixLine, len(arr))
		}
		f := fix.Fix{
			Lon:      arr[0].Float(),
			Lat:      arr[1].Float(),
			Accuracy: gjson.GetBytes(line, "properties.Accuracy").Float(),
		}
		if h := gjson.GetBytes(line, "properties.Heading"); h.Exists() && h.Type == gjson.Number {
			v := h.Float()
			f.Heading = &v
		}
		if t := gjson.GetBytes(line, "properties.Time"); t.Exists() {
			f.Time = t.Time()
		}
		if err := f.Validate(); err != nil {
			return fix.Event{}, err
		}
		return fix.Event{Fix: &f}, nil
	}

	f := fix.Fix{}
	if err := json.Unmarshal(line, &f); err != nil {
		return fix.Event{}, fmt.Errorf("%w: %v", ErrFixLine, err)
	}
	if !gjson.GetBytes(line, "lat").Exists() || !gjson.GetBytes(line, "lon").Exists() {
		return fix.Event{}, fmt.Errorf("%w: missing lat or lon", ErrFixLine)
	}
	if err := f.Validate(); err != nil {
		return fix.Event{}, err
	}
	return fix.Event{Fix: &f}, nil
}

// ReadFixesNDJSON streams fix events decoded from reader.
// Bad lines are reported on the error channel and skipped.
// Callers must drain both channels.
// Both channels close when the reader is exhausted or ctx is done.
func ReadFixesNDJSON(ctx context.Context, reader io.Reader) (<-chan fix.Event, <-chan error) {
	out := make(chan fix.Event)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		dec := json.NewDecoder(reader)
		for n := 1; ; n++ {
			msg := json.RawMessage{}
			if err := dec.Decode(&msg); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				sendErr(ctx, errs, fmt.Errorf("fix %d: %w", n, err))
				return
			}
			ev, err := DecodeFixLine(msg)
			if err != nil {
				sendErr(ctx, errs, fmt.Errorf("fix %d: %w", n, err))
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()
	return out, errs
}

func sendErr(ctx context.Context, errs chan<- error, err error) {
	select {
	case <-ctx.Done():
	case errs <- err:
	}
}

// GPXFixes replays every track point of a GPX log as a fix, in file order.
func GPXFixes(data []byte) ([]fix.Fix, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGPX, err)
	}
	var out []fix.Fix
	for _, track := range g.Tracks {
		for _, seg := range track.Segments {
			for _, p := range seg.Points {
				out = append(out, fix.Fix{Lat: p.Latitude, Lon: p.Longitude, Time: p.Timestamp})
			}
		}
	}
	return out, nil
}
