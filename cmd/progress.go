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
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/everystreet/state"
	"github.com/spf13/cobra"
)

// progressCmd represents the progress command
var progressCmd = &cobra.Command{
	Use:   "progress [FILE]",
	Short: "Show recorded completion history",
	Long: `Without arguments, lists every map file with recorded history.
With a map file, lists the completions recorded for it.

History is a record only; loading a file always starts with nothing completed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		history, err := state.OpenHistory(config.DataDir, true)
		if err != nil {
			log.Fatalln(err)
		}
		defer history.Close()

		if len(args) == 0 {
			err = printCollections(os.Stdout, history)
		} else {
			err = printProgress(os.Stdout, history, args[0])
		}
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
}

func printCollections(w io.Writer, h *state.History) error {
	cols, err := h.Collections()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tFILE\tSEGMENTS\tCOMPLETED\tLAST LOADED")
	for _, c := range cols {
		ids, err := h.CompletedIDs(c.Key)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", c.Key, c.FileName, c.Segments, len(ids), humanize.Time(c.LastLoaded))
	}
	return tw.Flush()
}

func printProgress(w io.Writer, h *state.History, name string) error {
	segs, err := readSegments(name)
	if err != nil {
		return err
	}
	key, err := state.CollectionKey(segs)
	if err != nil {
		return err
	}
	col, err := h.Collection(key)
	if errors.Is(err, state.ErrUnknownCollection) {
		_, err = fmt.Fprintf(w, "No history for %s.\n", name)
		return err
	}
	if err != nil {
		return err
	}
	completions, err := h.Completions(key)
	if err != nil {
		return err
	}
	ids, err := h.CompletedIDs(key)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d of %d segments driven at least once, first loaded %s.\n",
		col.FileName, len(ids), len(segs), humanize.Time(col.FirstSeen))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSEGMENT\tNAME\tSESSION")
	for _, c := range completions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Time.Format("2006-01-02 15:04:05"), c.SegmentID, c.Name, c.Session)
	}
	return tw.Flush()
}
