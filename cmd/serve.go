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
	"log"
	"log/slog"
	"time"

	"github.com/rotblauer/everystreet/common"
	"github.com/rotblauer/everystreet/daemon/webd"
	"github.com/rotblauer/everystreet/metrics/influxdb"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/session"
	"github.com/rotblauer/everystreet/state"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web daemon",
	Long: `Serves driving sessions over HTTP, with session events on a websocket.

Sessions are created with POST /sessions and driven with map file uploads,
location fixes and route requests. Completions are recorded to the history
database in the data dir.`,
	Run: func(cmd *cobra.Command, args []string) {
		history, err := state.OpenHistory(config.DataDir, false)
		if err != nil {
			log.Fatalln(err)
		}
		defer history.Close()

		opts := []webd.Option{
			webd.WithHistory(history),
			webd.WithSessionConfig(sessionConfig()),
		}
		if p := newProvider(); p != nil {
			opts = append(opts, webd.WithProvider(p))
		}
		d, err := webd.NewWebDaemon(&config.Web, opts...)
		if err != nil {
			log.Fatalln(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		exported := make(chan error, 1)
		if config.Influx.Enabled() {
			events := make(chan session.Event, 256)
			sub := d.SubscribeEvents(events)
			defer sub.Unsubscribe()
			go func() {
				exported <- influxdb.Export(ctx, config.Influx, events)
			}()
			slog.Info("Exporting session events to InfluxDB", "url", config.Influx.URL, "bucket", config.Influx.Bucket)
		} else {
			close(exported)
		}

		if err := d.Start(); err != nil {
			log.Fatalln(err)
		}

		sig := <-common.Interrupted()
		slog.Warn("Received signal, shutting down", "signal", sig)
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := d.Stop(stopCtx); err != nil {
			slog.Error("Web daemon shutdown", "error", err)
		}
		d.Wait()
		cancel()
		if err := <-exported; err != nil {
			slog.Error("InfluxDB export", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := params.DefaultWebDaemonConfig()
	flags := serveCmd.Flags()
	flags.String("address", defaults.Address, "HTTP address to listen on")
	flags.String("network", defaults.Network, "network to listen on (tcp, tcp4, tcp6, unix)")
	flags.Duration("session-ttl", defaults.SessionTTL, "drop sessions idle for this long")
	flagBindings["web.address"] = flags.Lookup("address")
	flagBindings["web.network"] = flags.Lookup("network")
	flagBindings["web.session_ttl"] = flags.Lookup("session-ttl")
}
