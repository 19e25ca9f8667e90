// Package mouse exposes the mouse buttons as an input.Device.
package mouse

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/input/joystick"
)

// UniqueID is the id of the single mouse device.
const UniqueID = "Mouse"

// ErrUnsupported is returned by NewReader where mouse buttons cannot be read.
var ErrUnsupported = errors.New("mouse input not supported on this platform")

// Button indices in source order.
const (
	Left = iota
	Middle
	Right
	X1
	X2
	ButtonCount
)

var buttonNames = [ButtonCount]string{"Left", "Middle", "Right", "X1", "X2"}

// ButtonReader samples the pressed state of the five buttons.
type ButtonReader interface {
	Buttons() ([ButtonCount]bool, error)
}

// Device polls a ButtonReader. It never disconnects.
type Device struct {
	input.Core

	reader  ButtonReader
	logger  *slog.Logger
	buttons [ButtonCount]*input.Source

	pollMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDevice(reader ButtonReader, logger *slog.Logger) *Device {
	d := &Device{reader: reader, logger: logger.With("device", UniqueID)}
	sources := make([]*input.Source, 0, ButtonCount)
	for i, name := range buttonNames {
		d.buttons[i] = input.NewSource(d, name, input.Button, joystick.ButtonOffsetBase+i)
		sources = append(sources, d.buttons[i])
	}
	d.Init(input.NewDeviceState(sources, 0))
	return d
}

func (d *Device) UniqueID() string              { return UniqueID }
func (d *Device) DisplayName() string           { return UniqueID }
func (d *Device) ForceFeedbackCount() int       { return 0 }
func (d *Device) SetForceFeedback(_, _ float64) {}

// Poll reads the buttons once. Read errors are logged and skipped.
func (d *Device) Poll() error {
	if !d.pollMu.TryLock() {
		return nil
	}
	defer d.pollMu.Unlock()

	pressed, err := d.reader.Buttons()
	if err != nil {
		d.logger.Debug("mouse read failed", "error", err)
		return nil
	}
	state := d.State()
	state.Reset()
	for i, src := range d.buttons {
		v := 0.0
		if pressed[i] {
			v = 1
		}
		if src.Refresh(v) {
			state.MarkChanged(src)
		}
	}
	d.Dispatch(d)
	return nil
}

func (d *Device) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.pollMu.Lock()
	d.cancel = cancel
	d.pollMu.Unlock()
	d.wg.Go(func() {
		input.PollLoop(ctx, d, joystick.PollInterval, d.logger)
	})
}

func (d *Device) Close() error {
	d.pollMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.pollMu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}
