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
	"log/slog"
	"os"

	"github.com/rotblauer/everystreet/directions"
	"github.com/rotblauer/everystreet/params"
	"github.com/rotblauer/everystreet/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string
var optVerbosity int

// config is loaded before any subcommand runs.
var config *params.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "everystreet",
	Short: "Drive every street in a map",
	Long: `Load a GeoJSON or GPX map of street segments, follow turn-by-turn
routes to the nearest undriven segment, and have segments marked
completed as you drive them start to end.

Configuration is read from everystreet.{yaml,toml,json} in the data dir
(or --config), then EVERYSTREET_* environment variables.
MAPBOX_ACCESS_TOKEN sets the directions access token.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setDefaultSlog(cmd, args)
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is <datadir>/everystreet.yaml)")
	pFlags.String("datadir", params.DefaultDatadirRoot, "data directory for history and config")
	pFlags.IntVar(&optVerbosity, "verbosity", int(slog.LevelInfo), "log level: -4 debug, 0 info, 4 warn, 8 error")
}

func setDefaultSlog(cmd *cobra.Command, args []string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(optVerbosity),
	})))
}

// initConfig layers defaults, config file, env and flags with viper.
func initConfig() error {
	v := viper.New()
	params.SetDefaults(v)
	if err := params.BindEnv(v); err != nil {
		return err
	}
	if err := v.BindPFlag("datadir", rootCmd.PersistentFlags().Lookup("datadir")); err != nil {
		return err
	}
	if err := bindCommandFlags(v); err != nil {
		return err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := params.ExpandDatadir(v.GetString("datadir"))
		if err != nil {
			return err
		}
		v.SetConfigName(params.ConfigFileName)
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		slog.Debug("No config file, using defaults and env")
	} else {
		slog.Info("Using config file", "path", v.ConfigFileUsed())
	}

	c, err := params.Load(v)
	if err != nil {
		return err
	}
	config = c
	return nil
}

// flagBindings maps config keys to subcommand flags. Subcommands add to it in init.
// A flag only takes precedence over file and env when it is set.
var flagBindings = map[string]*pflag.Flag{}

func bindCommandFlags(v *viper.Viper) error {
	for key, f := range flagBindings {
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// newProvider returns the directions client, or nil when no access token is configured.
func newProvider() directions.Provider {
	if !config.Directions.HasCredentials() {
		slog.Warn("No directions access token, routing disabled")
		return nil
	}
	c, err := directions.NewClient(config.Directions, nil)
	if err != nil {
		slog.Error("Failed to create directions client", "error", err)
		return nil
	}
	return c
}

func sessionConfig() session.Config {
	c := session.DefaultConfig()
	c.Tracker = config.Tracker
	c.Router = config.Router
	return c
}
