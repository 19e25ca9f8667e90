package testing

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/input"
)

// Offsets used by MockDevice. They follow the joystick layout so mappings
// built for a mock also resolve on real devices with the same shape.
const (
	MockAxisOffset   = 0
	MockButtonOffset = 200
)

// MockDevice is an input.Device whose values are set by the test and applied
// on the next Poll.
type MockDevice struct {
	input.Core

	id, name string
	ffCount  int

	mu          sync.Mutex
	pending     map[int]float64
	pendingHats map[int]input.DPadDirection
	failNext    bool
	feedback    [][2]float64

	pollMu sync.Mutex
	Polls  atomic.Int32
	Closed atomic.Bool
}

// NewMockDevice creates a connected device with the given number of axes,
// buttons and hats and two force feedback actuators.
func NewMockDevice(id string, axes, buttons, hats int) *MockDevice {
	d := &MockDevice{
		id:          id,
		name:        "Mock " + id,
		ffCount:     2,
		pending:     map[int]float64{},
		pendingHats: map[int]input.DPadDirection{},
	}
	var sources []*input.Source
	for i := 0; i < axes; i++ {
		typ := input.AxisX
		if i%2 == 1 {
			typ = input.AxisY
		}
		sources = append(sources, input.NewSource(d, fmt.Sprintf("Axis %d", i+1), typ, MockAxisOffset+i))
	}
	for i := 0; i < buttons; i++ {
		sources = append(sources, input.NewSource(d, fmt.Sprintf("Button %d", i+1), input.Button, MockButtonOffset+i))
	}
	for h := 0; h < hats; h++ {
		dp := input.DPadSources(d, h)
		sources = append(sources, dp[:]...)
	}
	d.Init(input.NewDeviceState(sources, hats))
	return d
}

func (d *MockDevice) UniqueID() string        { return d.id }
func (d *MockDevice) DisplayName() string     { return d.name }
func (d *MockDevice) ForceFeedbackCount() int { return d.ffCount }

// Axis returns the source of axis i.
func (d *MockDevice) Axis(i int) *input.Source { return d.Source(MockAxisOffset + i) }

// Button returns the source of button i.
func (d *MockDevice) Button(i int) *input.Source { return d.Source(MockButtonOffset + i) }

// Set queues a value for the source at offset.
func (d *MockDevice) Set(offset int, v float64) {
	d.mu.Lock()
	d.pending[offset] = v
	d.mu.Unlock()
}

// SetHat queues a direction for hat i.
func (d *MockDevice) SetHat(i int, dir input.DPadDirection) {
	d.mu.Lock()
	d.pendingHats[i] = dir
	d.mu.Unlock()
}

// FailNextPoll makes the next Poll behave like a hardware read error.
func (d *MockDevice) FailNextPoll() {
	d.mu.Lock()
	d.failNext = true
	d.mu.Unlock()
}

func (d *MockDevice) Poll() error {
	d.pollMu.Lock()
	defer d.pollMu.Unlock()
	d.Polls.Add(1)

	if !d.Connected() {
		return nil
	}

	d.mu.Lock()
	fail := d.failNext
	pending := d.pending
	hats := d.pendingHats
	d.pending = map[int]float64{}
	d.pendingHats = map[int]input.DPadDirection{}
	d.mu.Unlock()

	if fail {
		d.MarkDisconnected(d)
		return nil
	}

	st := d.State()
	st.Reset()
	for off, v := range pending {
		if src := st.Source(off); src != nil && src.Refresh(v) {
			st.MarkChanged(src)
		}
	}
	for i, dir := range hats {
		st.ApplyDPad(i, dir)
	}
	d.Dispatch(d)
	return nil
}

func (d *MockDevice) SetForceFeedback(big, small float64) {
	d.mu.Lock()
	d.feedback = append(d.feedback, [2]float64{big, small})
	d.mu.Unlock()
}

// Feedback returns every (big, small) pair received so far.
func (d *MockDevice) Feedback() [][2]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][2]float64, len(d.feedback))
	copy(out, d.feedback)
	return out
}

func (d *MockDevice) Close() error {
	d.Closed.Store(true)
	d.MarkDisconnected(d)
	return nil
}

// ErrMockReport is returned by MockDriver.Report when failing is enabled.
var ErrMockReport = errors.New("mock report rejected")

// MockDriver is an in-memory driver.Driver.
type MockDriver struct {
	unavailable error

	mu      sync.Mutex
	plugged map[int]bool
	reports map[int][]driver.Report
	failAt  map[int]int
	closed  bool

	unplugEntered chan struct{}
	unplugGate    chan struct{}

	feedback driver.FeedbackHub
}

// NewMockDriver returns an available driver. Pass a non-nil err to simulate
// a missing driver.
func NewMockDriver(unavailable error) *MockDriver {
	return &MockDriver{
		unavailable: unavailable,
		plugged:     map[int]bool{},
		reports:     map[int][]driver.Report{},
		failAt:      map[int]int{},
	}
}

func (m *MockDriver) Name() string { return "mock" }

func (m *MockDriver) Available() error { return m.unavailable }

func (m *MockDriver) Plugin(slot int) error {
	if err := driver.CheckSlot(slot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugged[slot] = true
	return nil
}

// HoldNextUnplug blocks the next Unplug until release is called. entered is
// closed once that Unplug is waiting.
func (m *MockDriver) HoldNextUnplug() (entered <-chan struct{}, release func()) {
	in, gate := make(chan struct{}), make(chan struct{})
	m.mu.Lock()
	m.unplugEntered, m.unplugGate = in, gate
	m.mu.Unlock()
	var once sync.Once
	return in, func() { once.Do(func() { close(gate) }) }
}

func (m *MockDriver) Unplug(slot int) error {
	m.mu.Lock()
	in, gate := m.unplugEntered, m.unplugGate
	m.unplugEntered, m.unplugGate = nil, nil
	m.mu.Unlock()
	if gate != nil {
		close(in)
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plugged, slot)
	return nil
}

func (m *MockDriver) Report(slot int, r driver.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.plugged[slot] {
		return driver.ErrNotPlugged
	}
	if n, ok := m.failAt[slot]; ok {
		if n <= 0 {
			return ErrMockReport
		}
		m.failAt[slot] = n - 1
	}
	m.reports[slot] = append(m.reports[slot], r)
	return nil
}

// FailReportsAfter makes Report on slot fail once n more reports succeeded.
func (m *MockDriver) FailReportsAfter(slot, n int) {
	m.mu.Lock()
	m.failAt[slot] = n
	m.mu.Unlock()
}

// Reports returns a copy of every report accepted for slot.
func (m *MockDriver) Reports(slot int) []driver.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driver.Report, len(m.reports[slot]))
	copy(out, m.reports[slot])
	return out
}

func (m *MockDriver) Plugged(slot int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plugged[slot]
}

func (m *MockDriver) OnFeedback(slot int, fn func(driver.Feedback)) (func(), bool) {
	return m.feedback.Subscribe(slot, fn), true
}

// SendFeedback emulates the driver raising a rumble event for slot.
func (m *MockDriver) SendFeedback(slot int, fb driver.Feedback) {
	m.feedback.Notify(slot, fb)
}

func (m *MockDriver) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
