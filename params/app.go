package params

import (
	"log/slog"

	"github.com/mitchellh/go-homedir"
)

// DefaultDatadirRoot is where history and config live unless overridden.
var DefaultDatadirRoot = func() string {
	dir, err := homedir.Expand("~/.everystreet")
	if err != nil {
		slog.Warn("Failed to expand home dir, using relative datadir", "error", err)
		return ".everystreet"
	}
	return dir
}()

// ExpandDatadir expands a leading ~ in a configured data dir.
func ExpandDatadir(dir string) (string, error) {
	if dir == "" {
		return DefaultDatadirRoot, nil
	}
	return homedir.Expand(dir)
}

const (
	ConfigFileName = "everystreet"
	EnvPrefix      = "EVERYSTREET"

	HistoryDBName = "history.db"
)

var HistoryBucket = []byte("history")
