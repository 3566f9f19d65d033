package influxdb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/session"
)

const Measurement = "everystreet"

// EventPoint converts a session event to an InfluxDB point.
// Location events carry no payload worth keeping and return nil.
func EventPoint(ev session.Event) *write.Point {
	if ev.Kind == session.EventLocation {
		return nil
	}
	p := influxdb2.NewPointWithMeasurement(Measurement).
		SetTime(ev.Time).
		AddTag("session", ev.Session.String()).
		AddTag("kind", string(ev.Kind)).
		AddField("status", ev.Status)
	if ev.SegmentID != "" {
		p.AddTag("segment", string(ev.SegmentID))
		p.AddField("name", ev.Name)
	}
	switch ev.Kind {
	case session.EventCompleted:
		p.AddField("completed", ev.Completed)
		p.AddField("total", ev.Total)
	case session.EventFileLoaded:
		p.AddField("total", ev.Total)
	case session.EventRouteReady:
		p.AddField("route_meters", ev.Distance)
	}
	return p
}

// Export writes session events to an InfluxDB Write API until events
// closes or ctx is done. The Write API buffers and flushes.
// The last write error encountered is returned.
func Export(ctx context.Context, cfg params.InfluxConfig, events <-chan session.Event) error {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	// Must be called before any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				slog.Warn("InfluxDB write failed", "error", e)
				err = e
			}
		}
	}()

	n := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			if p := EventPoint(ev); p != nil {
				writeAPI.WritePoint(p)
				n++
			}
		}
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	slog.Info("InfluxDB export done", "points", n)
	return err
}
