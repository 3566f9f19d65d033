package state

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/types/segment"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHistory_RecordAndRead(t *testing.T) {
	h := openTestHistory(t)
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if cs, err := h.Completions("nope"); err != nil || len(cs) != 0 {
		t.Fatalf("empty history: %v %v", cs, err)
	}
	for i, id := range []string{"a", "b", "a"} {
		c := Completion{SegmentID: conceptual.SegmentID(id), Name: "St " + id, Session: "s1", Time: t0.Add(time.Duration(i) * time.Minute)}
		if err := h.RecordCompletion("k1", c); err != nil {
			t.Fatal(err)
		}
	}
	cs, err := h.Completions("k1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 3 || cs[0].SegmentID != "a" || cs[1].SegmentID != "b" || cs[2].SegmentID != "a" {
		t.Errorf("want recorded order a,b,a: %+v", cs)
	}
	ids, err := h.CompletedIDs("k1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || !ids["a"].Equal(t0) {
		t.Errorf("distinct ids keep first time: %v", ids)
	}
}

func TestHistory_Collections(t *testing.T) {
	h := openTestHistory(t)
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := h.Collection("k1"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("want ErrUnknownCollection, got %v", err)
	}
	if err := h.RegisterCollection("k1", "a.geojson", 3, t0); err != nil {
		t.Fatal(err)
	}
	if err := h.RegisterCollection("k2", "b.gpx", 1, t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := h.RegisterCollection("k1", "renamed.geojson", 3, t0.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	c, err := h.Collection("k1")
	if err != nil {
		t.Fatal(err)
	}
	if !c.FirstSeen.Equal(t0) || !c.LastLoaded.Equal(t0.Add(2*time.Hour)) || c.FileName != "renamed.geojson" {
		t.Errorf("collection: %+v", c)
	}
	all, err := h.Collections()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Key != "k1" {
		t.Errorf("want most recent first: %+v", all)
	}
}

func TestHistory_ReopenReadOnly(t *testing.T) {
	dir := t.TempDir()
	h, err := OpenHistory(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.RecordCompletion("k", Completion{SegmentID: "x", Time: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	ro, err := OpenHistory(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()
	cs, err := ro.Completions("k")
	if err != nil || len(cs) != 1 {
		t.Errorf("read-only reopen: %v %v", cs, err)
	}
}

// A second writable handle waits on the file lock and gives up after the timeout.
func TestHistory_OpenLocked(t *testing.T) {
	dir := t.TempDir()
	h, err := OpenHistory(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if _, err := OpenHistory(dir, false); err == nil {
		t.Error("second writable open must time out")
	}
}

func TestCollectionKey(t *testing.T) {
	mk := func(ids ...string) segment.Segments {
		var feats []*geojson.Feature
		for i, id := range ids {
			f := geojson.NewFeature(orb.LineString{{float64(i), 0}, {float64(i), 1}})
			if id != "" {
				f.Properties["id"] = id
			}
			feats = append(feats, f)
		}
		return segment.NewIDGenerator().Assign(feats)
	}
	k1, err := CollectionKey(mk("a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	k2, _ := CollectionKey(mk("a", "b"))
	k3, _ := CollectionKey(mk("a", "c"))
	if k1 != k2 {
		t.Error("same collection must hash the same")
	}
	if k1 == k3 {
		t.Error("different ids must hash differently")
	}
	g1, _ := CollectionKey(mk("", ""))
	g2, _ := CollectionKey(mk("", ""))
	if g1 != g2 {
		t.Error("generated ids must not affect the key")
	}
}
