/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/everystreet/common"
	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/ingest"
	"github.com/rotblauer/everystreet/session"
	"github.com/rotblauer/everystreet/state"
	"github.com/rotblauer/everystreet/stream"
	"github.com/rotblauer/everystreet/types/fix"
	"github.com/spf13/cobra"
)

var optSegmentsFile string
var optFixesFile string
var optDedupe bool
var optNoHistory bool
var optRouteRetry int

// driveCmd represents the drive command
var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Replay location fixes through a session",
	Long: `Loads a map file and replays fixes through one session, requesting
a route to the next segment whenever the session is idle.

Fixes are read from NDJSON (one {"lat":..,"lon":..} object per line, "-" for stdin)
or from the track points of a GPX file.

Examples:

  everystreet drive --segments streets.geojson --fixes drive.ndjson
  cat drive.ndjson | everystreet drive --segments streets.gpx --fixes -
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case sig := <-common.Interrupted():
				slog.Warn("Received signal", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		data, err := os.ReadFile(optSegmentsFile)
		if err != nil {
			log.Fatalln(err)
		}

		var opts []session.Option
		if p := newProvider(); p != nil {
			opts = append(opts, session.WithProvider(p))
		}
		if !optNoHistory {
			history, err := state.OpenHistory(config.DataDir, false)
			if err != nil {
				log.Fatalln(err)
			}
			defer history.Close()
			opts = append(opts, session.WithHistory(history))
		}
		id := conceptual.SessionID("drive-" + time.Now().Format("20060102T150405"))
		sess := session.New(id, sessionConfig(), opts...)

		events := make(chan session.Event, 64)
		sub := sess.Subscribe(events)
		defer sub.Unsubscribe()
		go logSessionEvents(events, sub.Err())

		if err := sess.LoadFile(filepath.Base(optSegmentsFile), "", data); err != nil {
			log.Fatalln(sess.Status())
		}

		fixes, err := openFixes(ctx, optFixesFile)
		if err != nil {
			log.Fatalln(err)
		}
		if optDedupe {
			dedupe := fix.NewDedupeLRUFunc(fix.DefaultDedupeSize)
			fixes = stream.Filter(ctx, func(ev fix.Event) bool {
				return ev.Fix == nil || dedupe(*ev.Fix)
			}, fixes)
		}

		res := replay(ctx, sess, fixes, optRouteRetry)
		fmt.Println(res)
	},
}

func init() {
	rootCmd.AddCommand(driveCmd)

	flags := driveCmd.Flags()
	flags.StringVar(&optSegmentsFile, "segments", "", "GeoJSON or GPX map of segments to drive")
	flags.StringVar(&optFixesFile, "fixes", "-", "NDJSON fixes, or a GPX track to replay; - for stdin")
	flags.BoolVar(&optDedupe, "dedupe", true, "drop repeated identical fixes")
	flags.BoolVar(&optNoHistory, "no-history", false, "do not record completions")
	flags.IntVar(&optRouteRetry, "route-retry", 10, "fixes to wait after a failed route before asking again")
	flags.String("policy", "", "routing policy: nearest or batch")
	_ = driveCmd.MarkFlagRequired("segments")
	flagBindings["router.policy"] = flags.Lookup("policy")
}

// openFixes streams fix events from an NDJSON file (or stdin) or a GPX track.
// NDJSON lines that cannot be read are logged and skipped.
func openFixes(ctx context.Context, name string) (<-chan fix.Event, error) {
	if strings.EqualFold(filepath.Ext(name), ".gpx") {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		fixes, err := ingest.GPXFixes(data)
		if err != nil {
			return nil, err
		}
		return stream.Transform(ctx, func(f fix.Fix) fix.Event {
			return fix.Event{Fix: &f}
		}, stream.Slice(ctx, fixes)), nil
	}

	var r io.ReadCloser = os.Stdin
	if name != "-" && name != "" {
		fi, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		r = fi
	}
	events, errs := ingest.ReadFixesNDJSON(ctx, r)
	go func() {
		for err := range errs {
			slog.Warn("Skipping fix", "error", err)
		}
	}()
	out := make(chan fix.Event)
	go func() {
		defer close(out)
		defer r.Close()
		for ev := range events {
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()
	return out, nil
}

type replayResult struct {
	Fixes     int64
	Routes    int
	Completed int
	Total     int
	Status    string
	Elapsed   time.Duration
}

func (r replayResult) String() string {
	return fmt.Sprintf("%s fixes, %d routes, %d/%d segments completed in %s. %s",
		humanize.Comma(r.Fixes), r.Routes, r.Completed, r.Total,
		r.Elapsed.Round(time.Millisecond), r.Status)
}

// replay feeds fixes to sess in order, routing whenever it is idle,
// until the fixes run out, nothing routable is left, or ctx is done.
// After a failed route it waits retryAfter fixes before asking again.
func replay(ctx context.Context, sess *session.Session, fixes <-chan fix.Event, retryAfter int) replayResult {
	started := time.Now()
	tm := stream.NewTickMeter("fixes", 5*time.Second)
	defer tm.Stop()

	res := replayResult{}
	wait := 0
loop:
	for {
		var ev fix.Event
		var ok bool
		select {
		case <-ctx.Done():
			break loop
		case ev, ok = <-fixes:
			if !ok {
				break loop
			}
		}
		if ev.Err != nil {
			sess.HandleFixError(ev.Err)
			continue
		}
		if ev.Fix == nil {
			continue
		}
		tm.Mark(ev.Fix.String())
		sess.HandleFix(*ev.Fix)

		snap := sess.Snapshot()
		if snap.AllDone {
			break loop
		}
		if wait > 0 {
			wait--
			continue
		}
		if snap.Phase == "idle" && snap.CanRoute {
			err := sess.Route(ctx)
			switch {
			case err == nil:
				res.Routes++
			case errors.Is(err, session.ErrNoUndriven):
				slog.Info("Nothing left to drive", "status", sess.Status())
				break loop
			default:
				slog.Warn("Route failed", "status", sess.Status())
				wait = retryAfter
			}
		}
	}

	snap := sess.Snapshot()
	res.Fixes = tm.Count()
	res.Completed = len(snap.Completed)
	res.Total = snap.Segments
	res.Status = snap.Status
	res.Elapsed = time.Since(started)
	return res
}

func logSessionEvents(events <-chan session.Event, done <-chan error) {
	for {
		select {
		case ev := <-events:
			switch ev.Kind {
			case session.EventArmed:
				slog.Info("Armed", "segment", ev.SegmentID, "name", ev.Name)
			case session.EventCompleted:
				slog.Info("Completed", "segment", ev.SegmentID, "name", ev.Name,
					"progress", fmt.Sprintf("%d/%d", ev.Completed, ev.Total))
			case session.EventRouteReady:
				slog.Info("Route ready", "to", ev.Name,
					"distance", humanize.FtoaWithDigits(ev.Distance/common.MetersPerMile, 2)+" mi")
			case session.EventRouteFailed, session.EventFileError:
				slog.Warn(ev.Status)
			}
		case <-done:
			return
		}
	}
}
