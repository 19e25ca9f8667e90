package bridge

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRefreshInterval is the period of the shared poll trigger.
const DefaultRefreshInterval = 500 * time.Microsecond

// Refresher triggers Poll on every connected device at a fixed rate. Polls run
// on the Run goroutine; a device busy with its own loop skips the trigger.
type Refresher struct {
	inputs   *InputDevices
	interval time.Duration
	logger   *slog.Logger
}

func NewRefresher(inputs *InputDevices, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{inputs: inputs, interval: interval, logger: logger}
}

// Run blocks until ctx is done. No poll is in flight once it returns.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, d := range r.inputs.List() {
			if !d.Connected() {
				continue
			}
			if err := d.Poll(); err != nil {
				r.logger.Debug("poll failed", "device", d.UniqueID(), "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}
