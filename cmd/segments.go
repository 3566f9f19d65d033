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
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/everystreet/ingest"
	"github.com/rotblauer/everystreet/types/segment"
	"github.com/spf13/cobra"
)

// segmentsCmd represents the segments command
var segmentsCmd = &cobra.Command{
	Use:   "segments FILE",
	Short: "List the segments of a map file",
	Long: `Decodes a GeoJSON or GPX map file the way a session would and lists
each segment's id, name and length, followed by length statistics.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		segs, err := readSegments(args[0])
		if err != nil {
			log.Fatalln(err)
		}
		if err := printSegments(os.Stdout, segs); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(segmentsCmd)
}

func readSegments(name string) (segment.Segments, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	feats, err := ingest.Decode(filepath.Base(name), "", data)
	if err != nil {
		return nil, err
	}
	return segment.NewIDGenerator().Assign(feats), nil
}

type lengthStats struct {
	Trackable int
	Total     float64
	Min       float64
	Median    float64
	Mean      float64
	P90       float64
	Max       float64
}

// segmentLengthStats summarizes trackable segment lengths, in meters.
func segmentLengthStats(segs segment.Segments) (lengthStats, error) {
	var data stats.Float64Data
	for _, s := range segs {
		if s.IsTrackable() {
			data = append(data, s.LengthMeters())
		}
	}
	out := lengthStats{Trackable: len(data)}
	if len(data) == 0 {
		return out, nil
	}
	var err error
	if out.Total, err = stats.Sum(data); err != nil {
		return out, err
	}
	if out.Min, err = stats.Min(data); err != nil {
		return out, err
	}
	if out.Median, err = stats.Median(data); err != nil {
		return out, err
	}
	if out.Mean, err = stats.Mean(data); err != nil {
		return out, err
	}
	if out.P90, err = stats.Percentile(data, 90); err != nil {
		return out, err
	}
	if out.Max, err = stats.Max(data); err != nil {
		return out, err
	}
	return out, nil
}

func printSegments(w io.Writer, segs segment.Segments) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLENGTH\tTRACKABLE")
	for _, s := range segs {
		length := "-"
		if s.IsTrackable() {
			length = humanize.SIWithDigits(s.LengthMeters(), 1, "m")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", s.ID(), s.DisplayName(), length, s.IsTrackable())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	st, err := segmentLengthStats(segs)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\n%d segments, %d trackable, %s total. min %s, median %s, mean %s, p90 %s, max %s\n",
		len(segs), st.Trackable,
		humanize.SIWithDigits(st.Total, 2, "m"),
		humanize.SIWithDigits(st.Min, 1, "m"),
		humanize.SIWithDigits(st.Median, 1, "m"),
		humanize.SIWithDigits(st.Mean, 1, "m"),
		humanize.SIWithDigits(st.P90, 1, "m"),
		humanize.SIWithDigits(st.Max, 1, "m"))
	return err
}
