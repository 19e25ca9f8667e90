package testing

import (
	"errors"
	"sync"

	"github.com/Alia5/padbridge/input/joystick"
)

// ErrMockRead is returned by MockHandle.Read after Unplug.
var ErrMockRead = errors.New("mock handle unplugged")

// MockEffect records its lifecycle.
type MockEffect struct {
	Force joystick.ConstantForce

	mu       sync.Mutex
	started  bool
	disposed bool
}

func (e *MockEffect) Start() error {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()
	return nil
}

func (e *MockEffect) Dispose() {
	e.mu.Lock()
	e.disposed = true
	e.mu.Unlock()
}

func (e *MockEffect) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

func (e *MockEffect) Disposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

// MockHandle is a joystick.Handle returning whatever state the test sets.
type MockHandle struct {
	mu        sync.Mutex
	state     joystick.State
	unplugged bool
	failForce map[int]bool
	effects   []*MockEffect
	reads     int
	closed    bool
}

func NewMockHandle(state joystick.State) *MockHandle {
	return &MockHandle{state: state, failForce: map[int]bool{}}
}

// Set replaces the sample returned by the next Read.
func (h *MockHandle) Set(fn func(*joystick.State)) {
	h.mu.Lock()
	fn(&h.state)
	h.mu.Unlock()
}

// Unplug makes every following Read fail.
func (h *MockHandle) Unplug() {
	h.mu.Lock()
	h.unplugged = true
	h.mu.Unlock()
}

// FailForce makes effect creation on actuator fail.
func (h *MockHandle) FailForce(actuator int) {
	h.mu.Lock()
	h.failForce[actuator] = true
	h.mu.Unlock()
}

func (h *MockHandle) Read() (joystick.State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads++
	if h.unplugged || h.closed {
		return joystick.State{}, ErrMockRead
	}
	st := joystick.State{
		Axes:    append([]int(nil), h.state.Axes...),
		Sliders: append([]int(nil), h.state.Sliders...),
		Buttons: append([]bool(nil), h.state.Buttons...),
		POVs:    append([]int(nil), h.state.POVs...),
	}
	return st, nil
}

func (h *MockHandle) Reads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reads
}

func (h *MockHandle) CreateConstantForce(cf joystick.ConstantForce) (joystick.Effect, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failForce[cf.Actuator] {
		return nil, errors.New("effect not supported")
	}
	e := &MockEffect{Force: cf}
	h.effects = append(h.effects, e)
	return e, nil
}

// Effects returns every effect created so far, oldest first.
func (h *MockHandle) Effects() []*MockEffect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*MockEffect(nil), h.effects...)
}

func (h *MockHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

func (h *MockHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// MockBackend enumerates a fixed, mutable set of MockHandles.
type MockBackend struct {
	mu      sync.Mutex
	devices map[string]joystick.Info
	handles map[string]*MockHandle
	order   []string
}

func NewMockBackend() *MockBackend {
	return &MockBackend{devices: map[string]joystick.Info{}, handles: map[string]*MockHandle{}}
}

// Attach adds a device to the next enumeration.
func (b *MockBackend) Attach(info joystick.Info, h *MockHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.devices[info.InstanceID]; !ok {
		b.order = append(b.order, info.InstanceID)
	}
	b.devices[info.InstanceID] = info
	b.handles[info.InstanceID] = h
}

// Detach removes a device from enumeration and unplugs its handle.
func (b *MockBackend) Detach(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if h := b.handles[id]; h != nil {
		h.Unplug()
	}
	delete(b.devices, id)
	delete(b.handles, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *MockBackend) Enumerate() ([]joystick.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]joystick.Info, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.devices[id])
	}
	return out, nil
}

func (b *MockBackend) Open(info joystick.Info) (joystick.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.handles[info.InstanceID]
	if !ok {
		return nil, joystick.ErrDisconnected
	}
	return h, nil
}
