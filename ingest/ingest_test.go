package ingest

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rotblauer/everystreet/types/segment"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name, ct string
		want     Format
	}{
		{"a.geojson", "", FormatGeoJSON},
		{"A.GEOJSON", "", FormatGeoJSON},
		{"a.json", "", FormatGeoJSON},
		{"a.gpx", "", FormatGPX},
		{"blob", "application/geo+json; charset=utf-8", FormatGeoJSON},
		{"blob", MIMEGPX, FormatGPX},
		{"a.kml", "application/vnd.google-earth.kml+xml", FormatUnknown},
		{"a.txt", "", FormatUnknown},
	}
	for _, c := range cases {
		if got := DetectFormat(c.name, c.ct); got != c.want {
			t.Errorf("%s %q: want %v, got %v", c.name, c.ct, c.want, got)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"", "", ErrNoFile},
		{"a.kml", "<kml/>", ErrUnsupportedFileType},
		{"a.geojson", `{"type":"Feature"}`, ErrInvalidGeoJSON},
		{"a.geojson", `{"features":{}}`, ErrInvalidGeoJSON},
		{"a.geojson", `[1,2]`, ErrInvalidGeoJSON},
		{"a.gpx", "not xml at all", ErrInvalidGPX},
	}
	for _, c := range cases {
		_, err := Decode(c.name, "", []byte(c.data))
		if !errors.Is(err, c.want) {
			t.Errorf("%s %q: want %v, got %v", c.name, c.data, c.want, err)
		}
	}

	if _, err := Decode("a.geojson", "", []byte(`{"features": [`)); err == nil {
		t.Error("truncated json must fail")
	}
}

func TestDecodeGeoJSON(t *testing.T) {
	feats, err := Decode("segments.geojson", "", readTestdata(t, "segments.geojson"))
	if err != nil {
		t.Fatal(err)
	}
	if len(feats) != 3 {
		t.Fatalf("want 3 features, got %d", len(feats))
	}
	segs := segment.NewIDGenerator().Assign(feats)
	if segs[0].ID() != "101" || segs[1].ID() != "native-2" {
		t.Errorf("ids: %v", segs.IDs())
	}
	if segs[2].IsTrackable() {
		t.Error("point feature must be kept but not trackable")
	}
}

func TestDecodeGeoJSON_FeaturesWithoutType(t *testing.T) {
	data := `{"features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[1,1],[2,2]]}}]}`
	feats, err := DecodeGeoJSON([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(feats) != 1 {
		t.Fatalf("want 1 feature, got %d", len(feats))
	}
}

func TestDecodeGPX(t *testing.T) {
	feats, err := Decode("drive.gpx", "", readTestdata(t, "two_segments.gpx"))
	if err != nil {
		t.Fatal(err)
	}
	if len(feats) != 3 {
		t.Fatalf("want 2 track segments and 1 route, got %d", len(feats))
	}
	names := []string{}
	for _, f := range feats {
		names = append(names, f.Properties.MustString("name"))
		if _, ok := f.Geometry.(orb.LineString); !ok {
			t.Errorf("want LineString, got %T", f.Geometry)
		}
	}
	if strings.Join(names, ",") != "Elm St #1,Elm St #2,Loop Rd" {
		t.Errorf("names: %v", names)
	}
	ls := feats[1].Geometry.(orb.LineString)
	if len(ls) != 3 || ls[0] != (orb.Point{-93.25, 44.972}) {
		t.Errorf("coordinates must be lon,lat: %v", ls)
	}
}

func TestGPXFixes(t *testing.T) {
	fixes, err := GPXFixes(readTestdata(t, "two_segments.gpx"))
	if err != nil {
		t.Fatal(err)
	}
	if len(fixes) != 6 {
		t.Fatalf("want 6 fixes, got %d", len(fixes))
	}
	if fixes[0].Lat != 44.97 || fixes[0].Time.IsZero() {
		t.Errorf("first fix: %+v", fixes[0])
	}
}

func TestReadFixesNDJSON(t *testing.T) {
	in := strings.Join([]string{
		`{"lat":0,"lon":0,"accuracy":5}`,
		`{"error":"User denied Geolocation"}`,
		`{"foo":"bar"}`,
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0.0012]},"properties":{"Heading":90,"Time":"2024-12-20T22:19:53.713Z"}}`,
		`{"lat":95,"lon":0}`,
	}, "\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	evs, errs := ReadFixesNDJSON(ctx, strings.NewReader(in))

	var got []string
	var gotErrs []error
	for evs != nil || errs != nil {
		select {
		case ev, ok := <-evs:
			if !ok {
				evs = nil
				continue
			}
			switch {
			case ev.Err != nil:
				got = append(got, "err:"+ev.Err.Error())
			case ev.Fix != nil:
				got = append(got, ev.Fix.String())
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			gotErrs = append(gotErrs, err)
		}
	}
	want := "0.0000, 0.0000|err:User denied Geolocation|0.0012, 0.0000"
	if strings.Join(got, "|") != want {
		t.Errorf("want %s, got %s", want, strings.Join(got, "|"))
	}
	if len(gotErrs) != 2 {
		t.Errorf("want 2 line errors, got %v", gotErrs)
	}
}

func TestDecodeFixLine_FeatureHeading(t *testing.T) {
	ev, err := DecodeFixLine([]byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"Heading":270,"Accuracy":4.1}}`))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Fix == nil || ev.Fix.Heading == nil || *ev.Fix.Heading != 270 || ev.Fix.Accuracy != 4.1 {
		t.Errorf("unexpected fix: %+v", ev.Fix)
	}
}
