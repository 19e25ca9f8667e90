// Package xoutput computes the virtual controller state from a mapper and
// the physical devices it is bound to.
package xoutput

import (
	"sync"

	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/mapper"
	"github.com/Alia5/padbridge/xinput"
)

// State is the value of every virtual controller channel.
type State struct {
	Values [xinput.ChannelCount]float64
}

// NeutralState has every channel at its resting value.
func NeutralState() State {
	var s State
	for _, ch := range xinput.Channels() {
		s.Values[ch] = ch.Neutral()
	}
	return s
}

func (s State) Value(ch xinput.Channel) float64 {
	if !ch.Valid() {
		return 0
	}
	return s.Values[ch]
}

func (s State) Pressed(ch xinput.Channel) bool { return s.Value(ch) > 0.5 }

// DPad combines the four dpad channels into one direction set.
func (s State) DPad() input.DPadDirection {
	return input.DPadFromFlags(s.Pressed(xinput.Up), s.Pressed(xinput.Down), s.Pressed(xinput.Left), s.Pressed(xinput.Right))
}

// ChangedEvent is raised once per recomputation that changed at least one
// channel.
type ChangedEvent struct {
	State    State
	Channels []xinput.Channel
}

// Aggregator recomputes State whenever a bound device reports new input.
type Aggregator struct {
	mapper *mapper.InputMapper

	// dispatchMu orders recomputation and delivery, so subscribers see
	// events in the order the states were computed.
	dispatchMu sync.Mutex

	mu      sync.Mutex
	state   State
	unbinds []func()

	changed input.Notifier[ChangedEvent]
}

func NewAggregator(m *mapper.InputMapper) *Aggregator {
	a := &Aggregator{mapper: m}
	a.state.Values = m.Values()
	return a
}

// Attach subscribes to the input events of devices, replacing any previous
// subscriptions, and recomputes the state.
func (a *Aggregator) Attach(devices []input.Device) {
	unbinds := make([]func(), 0, len(devices))
	for _, d := range devices {
		unbinds = append(unbinds, d.OnInputChanged(func(input.InputChangedEvent) { a.Refresh() }))
	}

	a.mu.Lock()
	old := a.unbinds
	a.unbinds = unbinds
	a.mu.Unlock()
	for _, u := range old {
		u()
	}
	a.Refresh()
}

// Refresh recomputes every channel and notifies subscribers when any of them
// changed. Subscribers must not call Refresh.
func (a *Aggregator) Refresh() bool {
	a.dispatchMu.Lock()
	defer a.dispatchMu.Unlock()

	a.mu.Lock()
	values := a.mapper.Values()
	var changed []xinput.Channel
	for i, v := range values {
		if a.state.Values[i] != v {
			changed = append(changed, xinput.Channel(i))
		}
	}
	a.state.Values = values
	state := a.state
	a.mu.Unlock()

	if len(changed) == 0 {
		return false
	}
	a.changed.Notify(ChangedEvent{State: state, Channels: changed})
	return true
}

func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Aggregator) OnChanged(fn func(ChangedEvent)) func() {
	return a.changed.Subscribe(fn)
}

// Close drops every device subscription.
func (a *Aggregator) Close() {
	a.mu.Lock()
	old := a.unbinds
	a.unbinds = nil
	a.mu.Unlock()
	for _, u := range old {
		u()
	}
}
