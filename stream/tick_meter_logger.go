package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/everystreet/common"
)

// TickMeter counts items passing through a pipeline and logs
// the count and rate every interval until stopped.
type TickMeter struct {
	what     string
	interval time.Duration
	started  time.Time
	meter    metrics.Meter

	mu    sync.Mutex
	label string
	done  chan struct{}
	once  sync.Once
}

// NewTickMeter starts logging "what" progress every interval.
func NewTickMeter(what string, interval time.Duration) *TickMeter {
	// The metrics package is a no-op without this global.
	metrics.Enabled = true

	tm := &TickMeter{
		what:     what,
		interval: interval,
		started:  time.Now(),
		meter:    metrics.NewMeter(),
		done:     make(chan struct{}),
	}
	go tm.run()
	return tm
}

// Mark counts one item; label is logged as the most recent item.
func (tm *TickMeter) Mark(label string) {
	tm.mu.Lock()
	tm.label = label
	tm.mu.Unlock()
	tm.meter.Mark(1)
}

func (tm *TickMeter) Count() int64 {
	return tm.meter.Snapshot().Count()
}

func (tm *TickMeter) run() {
	ticker := time.NewTicker(tm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-tm.done:
			return
		case <-ticker.C:
			tm.log("Progress")
		}
	}
}

func (tm *TickMeter) log(msg string) {
	snap := tm.meter.Snapshot()
	tm.mu.Lock()
	last := tm.label
	tm.mu.Unlock()
	slog.Info(msg, "what", tm.what,
		"n", humanize.Comma(snap.Count()),
		"last", last,
		"rate", common.DecimalToFixed(snap.RateMean(), 1),
		"running", time.Since(tm.started).Round(time.Second))
}

// Stop logs a final line and stops the ticker. Safe to call more than once.
func (tm *TickMeter) Stop() {
	if tm == nil {
		return
	}
	tm.once.Do(func() {
		close(tm.done)
		tm.log("Done")
		tm.meter.Stop()
	})
}
