// Package sdl is the joystick.Backend implemented on SDL3's joystick API,
// loaded at runtime through purego.
//
// SDL calls are made from one goroutine locked to its OS thread. The other
// methods hand work to it and wait for the result.
package sdl

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/input/joystick"

	sdl3 "github.com/jupiterrider/purego-sdl3/sdl"
)

const (
	pumpInterval = time.Millisecond

	hatUp    uint8 = 0x01
	hatRight uint8 = 0x02
	hatDown  uint8 = 0x04
	hatLeft  uint8 = 0x08

	// rumbleDurationMs is SDL's longest rumble. Active rumble is sent again
	// every rumbleResend from the pump loop.
	rumbleDurationMs = 0xFFFF
	rumbleResend     = 30 * time.Second
)

var ErrClosed = errors.New("sdl backend closed")

// Backend owns the SDL joystick subsystem.
type Backend struct {
	logger *slog.Logger
	calls  chan func()
	done   chan struct{}
	exited chan struct{}
	close  sync.Once

	// Only touched on the SDL goroutine.
	open       map[sdl3.JoystickID]*handle
	byInstance map[string]*handle
}

// New initializes SDL on a dedicated thread.
func New(logger *slog.Logger) (*Backend, error) {
	b := &Backend{
		logger:     logger,
		calls:      make(chan func()),
		done:       make(chan struct{}),
		exited:     make(chan struct{}),
		open:       map[sdl3.JoystickID]*handle{},
		byInstance: map[string]*handle{},
	}
	ready := make(chan error, 1)
	go b.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) run(ready chan<- error) {
	defer close(b.exited)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl3.Init(sdl3.InitJoystick) {
		ready <- fmt.Errorf("SDL init failed: %s", sdl3.GetError())
		return
	}
	defer sdl3.Quit()
	b.logger.Debug("SDL3 joystick subsystem initialized")
	ready <- nil

	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()
	for {
		select {
		case fn := <-b.calls:
			fn()
		case now := <-ticker.C:
			b.processEvents()
			b.resendRumble(now)
		case <-b.done:
			for _, h := range b.open {
				h.closeLocked()
			}
			return
		}
	}
}

func (b *Backend) resendRumble(now time.Time) {
	for _, h := range b.open {
		if !h.rumble.Due(now) {
			continue
		}
		if err := h.rumbleLocked(); err != nil {
			b.logger.Debug("Rumble resend failed", "instance", h.instanceID, "error", err)
			h.rumble.Sent(false, now)
		}
	}
}

// do runs fn on the SDL goroutine and waits for it.
func (b *Backend) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case b.calls <- func() { fn(); close(finished) }:
	case <-b.done:
		return ErrClosed
	}
	<-finished
	return nil
}

func (b *Backend) processEvents() {
	var event sdl3.Event
	for sdl3.PollEvent(&event) {
		switch event.Type() {
		case sdl3.EventJoystickAdded:
			b.logger.Debug("Joystick added", "id", event.JDevice().Which)
		case sdl3.EventJoystickRemoved:
			id := event.JDevice().Which
			if h := b.open[id]; h != nil {
				b.logger.Debug("Joystick removed", "id", id, "instance", h.instanceID)
				h.closeLocked()
			}
		}
	}
}

// Enumerate opens every attached joystick and describes it.
//
// Instance ids are the product guid plus the position among connected
// devices of the same product, which keeps them stable across reconnects.
func (b *Backend) Enumerate() ([]joystick.Info, error) {
	var infos []joystick.Info
	err := b.do(func() {
		ids := sdl3.GetJoysticks()
		slices.Sort(ids)
		seen := map[string]int{}
		for _, id := range ids {
			h := b.open[id]
			if h == nil {
				js := sdl3.OpenJoystick(id)
				if js == nil {
					b.logger.Warn("Failed to open joystick", "id", id, "error", sdl3.GetError())
					continue
				}
				h = &handle{backend: b, id: id, js: js, rumble: joystick.RumbleTimer{Every: rumbleResend}}
				h.info = describe(js)
				b.open[id] = h
			}
			guid := h.info.ProductGUID
			seen[guid]++
			h.instanceID = fmt.Sprintf("%s/%d", guid, seen[guid])
			h.info.InstanceID = h.instanceID
			b.byInstance[h.instanceID] = h
			infos = append(infos, h.info)
		}
	})
	return infos, err
}

func describe(js *sdl3.Joystick) joystick.Info {
	caps := joystick.Capabilities{
		Axes:    int(sdl3.GetNumJoystickAxes(js)),
		Buttons: int(sdl3.GetNumJoystickButtons(js)),
		POVs:    int(sdl3.GetNumJoystickHats(js)),
	}
	if sdl3.RumbleJoystick(js, 0, 0, 0) {
		caps.ForceFeedbackActuators = joystick.MaxActuators
	}
	return joystick.Info{
		ProductName:  sdl3.GetJoystickName(js),
		ProductGUID:  joystick.ProductGUID(sdl3.GetJoystickVendor(js), sdl3.GetJoystickProduct(js)),
		Capabilities: caps,
	}
}

// Open returns the handle opened by the last Enumerate.
func (b *Backend) Open(info joystick.Info) (joystick.Handle, error) {
	var h *handle
	err := b.do(func() {
		h = b.byInstance[info.InstanceID]
		if h != nil && h.js == nil {
			h = nil
		}
	})
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("%w: %s", joystick.ErrDisconnected, info.InstanceID)
	}
	return h, nil
}

// Close closes every joystick and shuts SDL down.
func (b *Backend) Close() error {
	b.close.Do(func() {
		close(b.done)
	})
	<-b.exited
	return nil
}

type handle struct {
	backend    *Backend
	id         sdl3.JoystickID
	js         *sdl3.Joystick
	info       joystick.Info
	instanceID string

	motors [joystick.MaxActuators]int
	active [joystick.MaxActuators]*effect
	rumble joystick.RumbleTimer
}

func (h *handle) closeLocked() {
	if h.js == nil {
		return
	}
	sdl3.CloseJoystick(h.js)
	h.js = nil
	delete(h.backend.open, h.id)
	if h.backend.byInstance[h.instanceID] == h {
		delete(h.backend.byInstance, h.instanceID)
	}
}

func hatHundredths(v uint8) int {
	switch v {
	case hatUp:
		return 0
	case hatUp | hatRight:
		return 4500
	case hatRight:
		return 9000
	case hatDown | hatRight:
		return 13500
	case hatDown:
		return 18000
	case hatDown | hatLeft:
		return 22500
	case hatLeft:
		return 27000
	case hatUp | hatLeft:
		return 31500
	default:
		return input.HatCentered
	}
}

func (h *handle) Read() (joystick.State, error) {
	var st joystick.State
	var readErr error
	err := h.backend.do(func() {
		if h.js == nil || !sdl3.JoystickConnected(h.js) {
			readErr = joystick.ErrDisconnected
			return
		}
		caps := h.info.Capabilities
		st.Axes = make([]int, min(caps.Axes, joystick.MaxAxes))
		for i := range st.Axes {
			st.Axes[i] = int(sdl3.GetJoystickAxis(h.js, int32(i))) + 32768
		}
		st.Buttons = make([]bool, min(caps.Buttons, joystick.MaxButtons))
		for i := range st.Buttons {
			st.Buttons[i] = sdl3.GetJoystickButton(h.js, int32(i))
		}
		st.POVs = make([]int, caps.POVs)
		for i := range st.POVs {
			st.POVs[i] = hatHundredths(sdl3.GetJoystickHat(h.js, int32(i)))
		}
	})
	if err != nil {
		return st, err
	}
	return st, readErr
}

// rumbleLocked sends the current motor magnitudes.
func (h *handle) rumbleLocked() error {
	if h.js == nil {
		return joystick.ErrDisconnected
	}
	low := uint16(h.motors[0] * 0xFFFF / joystick.MaxMagnitude)
	high := uint16(h.motors[1] * 0xFFFF / joystick.MaxMagnitude)
	if !sdl3.RumbleJoystick(h.js, low, high, rumbleDurationMs) {
		return fmt.Errorf("rumble: %s", sdl3.GetError())
	}
	h.rumble.Sent(low != 0 || high != 0, time.Now())
	return nil
}

func (h *handle) CreateConstantForce(cf joystick.ConstantForce) (joystick.Effect, error) {
	if cf.Actuator < 0 || cf.Actuator >= joystick.MaxActuators {
		return nil, fmt.Errorf("no actuator %d", cf.Actuator)
	}
	return &effect{h: h, actuator: cf.Actuator, magnitude: min(max(cf.Magnitude, 0), joystick.MaxMagnitude)}, nil
}

func (h *handle) Close() error {
	return h.backend.do(h.closeLocked)
}

// effect drives one motor of an SDL rumble pair.
type effect struct {
	h         *handle
	actuator  int
	magnitude int
}

func (e *effect) Start() error {
	var rumbleErr error
	err := e.h.backend.do(func() {
		e.h.active[e.actuator] = e
		e.h.motors[e.actuator] = e.magnitude
		rumbleErr = e.h.rumbleLocked()
	})
	if err != nil {
		return err
	}
	return rumbleErr
}

// Dispose stops the motor if e is still the running effect.
func (e *effect) Dispose() {
	_ = e.h.backend.do(func() {
		if e.h.active[e.actuator] != e {
			return
		}
		e.h.active[e.actuator] = nil
		e.h.motors[e.actuator] = 0
		_ = e.h.rumbleLocked()
	})
}
