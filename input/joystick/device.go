package joystick

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alia5/padbridge/input"
)

// PollInterval is the delay of the free running poll loop.
const PollInterval = time.Millisecond

// Device is an input.Device backed by a joystick Handle.
type Device struct {
	input.Core

	info   Info
	handle Handle
	logger *slog.Logger

	name      atomic.Value
	axes      []*input.Source
	sliders   []*input.Source
	buttons   []*input.Source
	hats      int
	ff        *ForceFeedback
	ffEnabled atomic.Bool

	pollMu    sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDevice wraps an opened handle. Capabilities are clamped to MaxAxes and
// MaxButtons.
func NewDevice(info Info, handle Handle, logger *slog.Logger) *Device {
	caps := info.Capabilities
	d := &Device{
		info:   info,
		handle: handle,
		logger: logger.With("device", info.InstanceID),
		hats:   max(caps.POVs, 0),
	}
	d.name.Store(info.ProductName)
	d.ffEnabled.Store(true)

	var sources []*input.Source
	for i := 0; i < min(caps.Axes, MaxAxes); i++ {
		typ := [3]input.SourceType{input.AxisX, input.AxisY, input.AxisZ}[i%3]
		src := input.NewSource(d, AxisNames[i], typ, i)
		d.axes = append(d.axes, src)
		sources = append(sources, src)
	}
	for i := 0; i < caps.Sliders; i++ {
		src := input.NewSource(d, fmt.Sprintf("Slider %d", i+1), input.Slider, SliderOffsetBase+i)
		d.sliders = append(d.sliders, src)
		sources = append(sources, src)
	}
	for i := 0; i < min(caps.Buttons, MaxButtons); i++ {
		src := input.NewSource(d, fmt.Sprintf("Button %d", i+1), input.Button, ButtonOffsetBase+i)
		d.buttons = append(d.buttons, src)
		sources = append(sources, src)
	}
	for h := 0; h < d.hats; h++ {
		dp := input.DPadSources(d, h)
		sources = append(sources, dp[:]...)
	}
	d.Init(input.NewDeviceState(sources, d.hats))
	d.ff = NewForceFeedback(handle, caps.ForceFeedbackActuators, d.logger)
	return d
}

func (d *Device) UniqueID() string { return d.info.InstanceID }

func (d *Device) DisplayName() string { return d.name.Load().(string) }

// SetDisplayName overrides the product name, used to keep names unique.
func (d *Device) SetDisplayName(name string) { d.name.Store(name) }

func (d *Device) Info() Info { return d.info }

func (d *Device) ForceFeedbackCount() int { return d.ff.Count() }

// SetForceFeedbackEnabled turns rumble forwarding on or off. While off every
// update is sent as (0, 0).
func (d *Device) SetForceFeedbackEnabled(enabled bool) { d.ffEnabled.Store(enabled) }

func (d *Device) SetForceFeedback(big, small float64) {
	if !d.Connected() {
		return
	}
	if !d.ffEnabled.Load() {
		big, small = 0, 0
	}
	d.ff.Set(big, small)
}

type decoded struct {
	axes    []float64
	sliders []float64
	dpads   []input.DPadDirection
}

// decode converts a sample without touching any state so that a fault leaves
// the device untouched.
func (d *Device) decode(st State) (decoded, error) {
	out := decoded{
		axes:    make([]float64, len(d.axes)),
		sliders: make([]float64, len(d.sliders)),
		dpads:   make([]input.DPadDirection, d.hats),
	}
	for i, src := range d.axes {
		if i >= len(st.Axes) {
			out.axes[i] = src.Value()
			continue
		}
		raw := st.Axes[i]
		if raw < 0 || raw > AxisMax {
			return out, fmt.Errorf("%w: axis %s = %d", ErrInvalidAxis, AxisNames[i], raw)
		}
		if i%3 == 1 {
			raw = AxisMax - raw
		}
		out.axes[i] = float64(raw) / AxisMax
	}
	for i, src := range d.sliders {
		if i >= len(st.Sliders) {
			out.sliders[i] = src.Value()
			continue
		}
		raw := st.Sliders[i]
		if raw < 0 || raw > AxisMax {
			return out, fmt.Errorf("%w: slider %d = %d", ErrInvalidAxis, i+1, raw)
		}
		out.sliders[i] = float64(raw) / AxisMax
	}
	for i := range out.dpads {
		raw := input.HatCentered
		if i < len(st.POVs) {
			raw = st.POVs[i]
		}
		dir, err := input.DecodeHat(raw)
		if err != nil {
			return out, fmt.Errorf("hat %d: %w", i, err)
		}
		out.dpads[i] = dir
	}
	return out, nil
}

// Poll reads one sample. Overlapping calls return immediately.
func (d *Device) Poll() error {
	if !d.pollMu.TryLock() {
		return nil
	}
	defer d.pollMu.Unlock()
	if !d.Connected() {
		return nil
	}

	st, err := d.handle.Read()
	if err != nil {
		d.logger.Warn("Joystick read failed, marking disconnected", "error", err)
		d.MarkDisconnected(d)
		return nil
	}
	values, err := d.decode(st)
	if err != nil {
		return err
	}

	state := d.State()
	state.Reset()
	refresh := func(src *input.Source, v float64) {
		if src.Refresh(v) {
			state.MarkChanged(src)
		}
	}
	for i, src := range d.axes {
		refresh(src, values.axes[i])
	}
	for i, src := range d.sliders {
		refresh(src, values.sliders[i])
	}
	for i, src := range d.buttons {
		v := 0.0
		if i < len(st.Buttons) && st.Buttons[i] {
			v = 1
		}
		refresh(src, v)
	}
	for i, dir := range values.dpads {
		state.ApplyDPad(i, dir)
	}
	d.Dispatch(d)
	return nil
}

// Start runs the poll loop until ctx is done, the device disconnects or
// Close is called.
func (d *Device) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.pollMu.Lock()
	d.cancel = cancel
	d.pollMu.Unlock()
	d.wg.Go(func() {
		input.PollLoop(ctx, d, PollInterval, d.logger)
	})
}

// Close stops the poll loop, waits for it and releases the handle.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.MarkDisconnected(d)
		d.pollMu.Lock()
		cancel := d.cancel
		d.pollMu.Unlock()
		if cancel != nil {
			cancel()
		}
		d.wg.Wait()

		d.pollMu.Lock()
		defer d.pollMu.Unlock()
		d.ff.Close()
		err = d.handle.Close()
	})
	return err
}
