package input

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// InputChangedEvent carries every source and hat that changed during a single
// poll of Device.
type InputChangedEvent struct {
	Device  Device
	Sources []*Source
	DPads   []int
}

// Device is a polled physical input device.
type Device interface {
	UniqueID() string
	DisplayName() string
	Connected() bool
	Sources() []*Source
	// Source returns the source at offset or nil.
	Source(offset int) *Source
	DPadCount() int
	DPad(i int) DPadDirection
	ForceFeedbackCount() int
	SetForceFeedback(big, small float64)
	// Poll reads one hardware sample. Hardware faults mark the device
	// disconnected and are not returned; only decode faults are.
	Poll() error
	OnInputChanged(fn func(InputChangedEvent)) func()
	OnDisconnected(fn func(Device)) func()
	Close() error
}

// Core implements the connectivity, state and event parts of Device. Device
// implementations embed it and call Init before use.
type Core struct {
	state        *DeviceState
	connected    atomic.Bool
	inputChanged Notifier[InputChangedEvent]
	disconnected Notifier[Device]
	lost         sync.Once
}

func (c *Core) Init(state *DeviceState) {
	c.state = state
	c.connected.Store(true)
}

func (c *Core) State() *DeviceState { return c.state }

func (c *Core) Connected() bool { return c.connected.Load() }

func (c *Core) Sources() []*Source { return c.state.Sources() }

func (c *Core) Source(offset int) *Source { return c.state.Source(offset) }

func (c *Core) DPadCount() int { return c.state.DPadCount() }

func (c *Core) DPad(i int) DPadDirection { return c.state.DPad(i) }

func (c *Core) OnInputChanged(fn func(InputChangedEvent)) func() {
	return c.inputChanged.Subscribe(fn)
}

func (c *Core) OnDisconnected(fn func(Device)) func() {
	return c.disconnected.Subscribe(fn)
}

// Dispatch sends one InputChangedEvent for the current change-sets, if any.
func (c *Core) Dispatch(dev Device) bool {
	if !c.state.HasChanges() {
		return false
	}
	c.inputChanged.Notify(InputChangedEvent{
		Device:  dev,
		Sources: c.state.Changes(),
		DPads:   c.state.ChangedDPads(),
	})
	return true
}

// MarkDisconnected clears the connected flag and notifies subscribers once.
func (c *Core) MarkDisconnected(dev Device) {
	c.connected.Store(false)
	c.lost.Do(func() {
		c.disconnected.Notify(dev)
	})
}

// PollLoop polls dev every interval until ctx is done or dev disconnects.
func PollLoop(ctx context.Context, dev Device, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !dev.Connected() {
			logger.Debug("poll loop finished, device disconnected", "device", dev.UniqueID())
			return
		}
		if err := dev.Poll(); err != nil {
			logger.Error("poll failed", "device", dev.UniqueID(), "error", err)
		}
	}
}
