package mapper

import (
	"sync"

	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/xinput"
)

// NoOutputSlot marks a mapper that is not assigned to a virtual slot.
const NoOutputSlot = -1

// InputMapper owns the calibration rules of one logical controller.
type InputMapper struct {
	mu                 sync.RWMutex
	id                 string
	name               string
	outputSlot         int
	forceFeedback      string
	startAutomatically bool
	combine            Combine
	channels           [xinput.ChannelCount]Collection
}

// New creates an empty mapper with every channel disabled.
func New(id, name string) *InputMapper {
	m := &InputMapper{id: id, name: name, outputSlot: NoOutputSlot}
	for i := range m.channels {
		m.channels[i].Channel = xinput.Channel(i)
	}
	return m
}

// ID is stable across settings reloads.
func (m *InputMapper) ID() string { return m.id }

func (m *InputMapper) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

func (m *InputMapper) SetName(name string) {
	m.mu.Lock()
	m.name = name
	m.mu.Unlock()
}

// OutputSlot returns the assigned virtual slot or NoOutputSlot.
func (m *InputMapper) OutputSlot() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.outputSlot
}

func (m *InputMapper) SetOutputSlot(slot int) {
	m.mu.Lock()
	m.outputSlot = slot
	m.mu.Unlock()
}

// ForceFeedbackDevice returns the unique id of the device that receives
// rumble, or "".
func (m *InputMapper) ForceFeedbackDevice() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forceFeedback
}

func (m *InputMapper) SetForceFeedbackDevice(id string) {
	m.mu.Lock()
	m.forceFeedback = id
	m.mu.Unlock()
}

func (m *InputMapper) StartAutomatically() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startAutomatically
}

func (m *InputMapper) SetStartAutomatically(v bool) {
	m.mu.Lock()
	m.startAutomatically = v
	m.mu.Unlock()
}

func (m *InputMapper) Combine() Combine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.combine
}

func (m *InputMapper) SetCombine(c Combine) {
	m.mu.Lock()
	m.combine = c
	m.mu.Unlock()
}

// Mappings returns a copy of the mappings of ch.
func (m *InputMapper) Mappings(ch xinput.Channel) []Mapping {
	if !ch.Valid() {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Mapping, len(m.channels[ch].Mappings))
	for i, mp := range m.channels[ch].Mappings {
		out[i] = *mp
	}
	return out
}

// SetMappings replaces the mappings of ch. The channel of each mapping is
// forced to ch.
func (m *InputMapper) SetMappings(ch xinput.Channel, mappings []Mapping) {
	if !ch.Valid() {
		return
	}
	list := make([]*Mapping, len(mappings))
	for i := range mappings {
		mp := mappings[i]
		mp.Channel = ch
		if mp.Source == nil {
			mp.Source = input.DisabledSource
		}
		list[i] = &mp
	}
	m.mu.Lock()
	m.channels[ch].Mappings = list
	m.mu.Unlock()
}

// Add appends mp to its channel.
func (m *InputMapper) Add(mp Mapping) {
	if !mp.Channel.Valid() {
		return
	}
	if mp.Source == nil {
		mp.Source = input.DisabledSource
	}
	m.mu.Lock()
	c := &m.channels[mp.Channel]
	c.Mappings = append(c.Mappings, &mp)
	m.mu.Unlock()
}

// Value returns the current combined value of ch.
func (m *InputMapper) Value(ch xinput.Channel) float64 {
	if !ch.Valid() {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[ch].Value(m.combine)
}

// Values returns the current value of every channel.
func (m *InputMapper) Values() [xinput.ChannelCount]float64 {
	var out [xinput.ChannelCount]float64
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.channels {
		out[i] = m.channels[i].Value(m.combine)
	}
	return out
}

// Attach resolves every mapping's persisted reference against devices. A
// reference that does not resolve falls back to the disabled source.
func (m *InputMapper) Attach(devices []input.Device) {
	byID := make(map[string]input.Device, len(devices))
	for _, d := range devices {
		byID[d.UniqueID()] = d
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.channels {
		for _, mp := range m.channels[i].Mappings {
			mp.Source = input.DisabledSource
			dev, ok := byID[mp.Ref.Device]
			if !ok {
				continue
			}
			if src := dev.Source(mp.Ref.Offset); src != nil {
				mp.Source = src
			}
		}
	}
}

// Devices returns the distinct devices that own a mapped source, in first
// use order.
func (m *InputMapper) Devices() []input.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[input.Device]bool{}
	var out []input.Device
	for i := range m.channels {
		for _, mp := range m.channels[i].Mappings {
			dev := mp.Source.Device()
			if dev == nil || seen[dev] {
				continue
			}
			seen[dev] = true
			out = append(out, dev)
		}
	}
	return out
}

// DeviceIDs returns the distinct unique ids referenced by the mappings,
// whether or not they are currently resolved.
func (m *InputMapper) DeviceIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for i := range m.channels {
		for _, mp := range m.channels[i].Mappings {
			id := mp.Ref.Device
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
