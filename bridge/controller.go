package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/mapper"
	"github.com/Alia5/padbridge/xoutput"
)

var (
	ErrNotStarted        = errors.New("controller not started")
	ErrNoOutputSlot      = errors.New("no output slot configured")
	ErrDriverUnavailable = errors.New("virtual controller driver unavailable")
	ErrSlotInUse         = errors.New("output slot in use")
)

// TickInterval is the period of the liveness check and the periodic report.
const TickInterval = 100 * time.Millisecond

type RunState int

const (
	Stopped RunState = iota
	Running
	// Stopping is held while a session releases its slot. Start waits for it
	// to end.
	Stopping
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// GameController drives one virtual controller slot from one InputMapper.
type GameController struct {
	bctx   *Context
	mapper *mapper.InputMapper
	agg    *xoutput.Aggregator
	logger *slog.Logger

	mu             sync.Mutex
	state          RunState
	slot           int
	bound          []input.Device
	unsubs         []func()
	cancel         context.CancelFunc
	done           chan struct{}
	onStop         func()
	restartPending bool
	stopped        chan struct{}

	reportMu sync.Mutex
	sending  bool
	fault    chan error
}

func newGameController(bctx *Context, m *mapper.InputMapper) *GameController {
	return &GameController{
		bctx:   bctx,
		mapper: m,
		agg:    xoutput.NewAggregator(m),
		logger: bctx.Logger.With("controller", m.ID()),
		slot:   mapper.NoOutputSlot,
	}
}

func (c *GameController) ID() string { return c.mapper.ID() }

func (c *GameController) Name() string { return c.mapper.Name() }

func (c *GameController) Mapper() *mapper.InputMapper { return c.mapper }

func (c *GameController) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Slot returns the held slot, or mapper.NoOutputSlot while stopped.
func (c *GameController) Slot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return mapper.NoOutputSlot
	}
	return c.slot
}

// Output returns the current virtual controller state.
func (c *GameController) Output() xoutput.State { return c.agg.State() }

// OnOutputChanged subscribes to output state changes, running or not.
func (c *GameController) OnOutputChanged(fn func(xoutput.ChangedEvent)) func() {
	return c.agg.OnChanged(fn)
}

// Rebind re-resolves the mappings against devices and follows their input.
func (c *GameController) Rebind(devices []input.Device) {
	c.mapper.Attach(devices)
	c.agg.Attach(c.mapper.Devices())
}

// Start claims the configured slot and begins emulation. onStop, if not nil,
// runs once after the session ends and its resources are released.
func (c *GameController) Start(onStop func()) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.state == Stopping {
		stopped := c.stopped
		c.mu.Unlock()
		<-stopped
		c.mu.Lock()
	}
	if c.state == Running {
		return c.slot, nil
	}

	slot := c.mapper.OutputSlot()
	if driver.CheckSlot(slot) != nil {
		return mapper.NoOutputSlot, fmt.Errorf("%w: %w", ErrNotStarted, ErrNoOutputSlot)
	}
	outputs := c.bctx.Outputs
	if err := outputs.Available(); err != nil {
		return mapper.NoOutputSlot, fmt.Errorf("%w: %w: %w", ErrNotStarted, ErrDriverUnavailable, err)
	}
	if err := c.bctx.Controllers.ClaimSlot(slot, c); err != nil {
		return mapper.NoOutputSlot, fmt.Errorf("%w: %w", ErrNotStarted, err)
	}
	drv := outputs.Driver()
	if err := drv.Plugin(slot); err != nil {
		c.bctx.Controllers.ReleaseSlot(slot, c)
		return mapper.NoOutputSlot, fmt.Errorf("%w: plug in slot %d: %w", ErrNotStarted, slot, err)
	}

	c.slot = slot
	c.state = Running
	c.onStop = onStop
	c.restartPending = false
	c.bound = c.mapper.Devices()

	c.reportMu.Lock()
	c.sending = true
	c.fault = make(chan error, 1)
	c.reportMu.Unlock()

	c.unsubs = append(c.unsubs, c.agg.OnChanged(func(e xoutput.ChangedEvent) { c.send(e.State) }))
	if id := c.mapper.ForceFeedbackDevice(); id != "" {
		if dev := c.bctx.Inputs.Find(id); dev != nil && dev.ForceFeedbackCount() > 0 {
			if unsub, ok := drv.OnFeedback(slot, func(fb driver.Feedback) {
				dev.SetForceFeedback(float64(fb.Large)/255, float64(fb.Small)/255)
			}); ok {
				c.unsubs = append(c.unsubs, unsub)
			}
		} else {
			c.logger.Debug("Force feedback device not available", "device", id)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx, c.done, c.fault)

	c.send(c.agg.State())
	c.logger.Info("Controller started", "name", c.mapper.Name(), "slot", slot, "driver", drv.Name())
	return slot, nil
}

// Stop ends the session and returns once the slot is released. It is
// idempotent.
func (c *GameController) Stop() {
	c.stop(false, false)
}

// stop tears the session down. fromLoop is set when called by the loop
// goroutine, which must not wait for itself.
func (c *GameController) stop(fromLoop, lostDevice bool) {
	c.mu.Lock()
	if c.state == Stopping && !fromLoop {
		stopped := c.stopped
		c.mu.Unlock()
		<-stopped
		return
	}
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	c.state = Stopping
	c.stopped = make(chan struct{})
	slot, unsubs, cancel, done, onStop, stopped := c.slot, c.unsubs, c.cancel, c.done, c.onStop, c.stopped
	c.unsubs, c.onStop, c.bound = nil, nil, nil
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	c.reportMu.Lock()
	c.sending = false
	c.reportMu.Unlock()

	if err := c.bctx.Outputs.Driver().Unplug(slot); err != nil {
		c.logger.Warn("Failed to unplug virtual controller", "slot", slot, "error", err)
	}
	c.bctx.Controllers.ReleaseSlot(slot, c)

	cancel()
	if !fromLoop {
		<-done
	}

	c.mu.Lock()
	c.state = Stopped
	c.restartPending = lostDevice
	c.mu.Unlock()
	close(stopped)

	c.logger.Info("Controller stopped", "slot", slot)
	if onStop != nil {
		onStop()
	}
}

// RestartPending reports whether the last session ended because a bound
// device was lost.
func (c *GameController) RestartPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restartPending
}

func (c *GameController) send(s xoutput.State) {
	c.reportMu.Lock()
	defer c.reportMu.Unlock()
	if !c.sending {
		return
	}
	if err := c.bctx.Outputs.Driver().Report(c.slot, driver.NewReport(s)); err != nil {
		c.sending = false
		select {
		case c.fault <- err:
		default:
		}
	}
}

func (c *GameController) disconnected() input.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.bound {
		if !d.Connected() {
			return d
		}
	}
	return nil
}

func (c *GameController) loop(ctx context.Context, done chan struct{}, fault <-chan error) {
	defer close(done)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-fault:
			c.logger.Error("Report failed, stopping controller", "error", err)
			c.stop(true, false)
			return
		case <-ticker.C:
		}
		if dev := c.disconnected(); dev != nil {
			c.logger.Warn("Input device disconnected, stopping controller", "device", dev.UniqueID())
			c.stop(true, true)
			return
		}
		c.send(c.agg.State())
	}
}

// Close releases the aggregator subscriptions. The controller must be
// stopped.
func (c *GameController) Close() {
	c.agg.Close()
}
