package common

import (
	"os"
	"os/signal"
	"syscall"
)

// Interrupted returns a channel receiving interrupt and termination signals.
func Interrupted() <-chan os.Signal {
	interrupt := make(chan os.Signal, 2)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	return interrupt
}
