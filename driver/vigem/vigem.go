// Package vigem drives virtual Xbox 360 controllers through the ViGEmBus
// kernel driver. It is only functional on Windows with ViGEmClient.dll on
// the library path.
package vigem

import (
	"log/slog"
	"sync"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/internal/log"
)

// Driver implements driver.Driver on top of ViGEmBus.
type Driver struct {
	logger *slog.Logger
	raw    log.RawLogger

	mu        sync.Mutex
	client    uintptr
	connected bool
	targets   [driver.MaxOutputDevices]*target

	feedback driver.FeedbackHub
}

func New(logger *slog.Logger, raw log.RawLogger) *Driver {
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Driver{logger: logger, raw: raw}
}

func (d *Driver) Name() string { return "vigem" }

func (d *Driver) OnFeedback(idx int, fn func(driver.Feedback)) (func(), bool) {
	return d.feedback.Subscribe(idx, fn), true
}
