package influxdb

import (
	"testing"
	"time"

	"github.com/rotblauer/everystreet/session"
)

func TestEventPoint(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if p := EventPoint(session.Event{Kind: session.EventLocation, Time: now}); p != nil {
		t.Error("location events are not exported")
	}

	p := EventPoint(session.Event{
		Kind:      session.EventCompleted,
		Session:   "s1",
		Time:      now,
		Status:    `Segment "Main St" completed!`,
		SegmentID: "north",
		Name:      "Main St",
		Completed: 3,
		Total:     10,
	})
	if p == nil {
		t.Fatal("nil point")
	}
	if p.Name() != Measurement || !p.Time().Equal(now) {
		t.Errorf("point: %s %v", p.Name(), p.Time())
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["session"] != "s1" || tags["kind"] != "completed" || tags["segment"] != "north" {
		t.Errorf("tags: %v", tags)
	}
	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["completed"] != int64(3) || fields["total"] != int64(10) || fields["name"] != "Main St" {
		t.Errorf("fields: %v", fields)
	}
}
