// Package input holds the primitives shared by every physical device: scalar
// sources with change detection, the per-poll device state, dpad decoding and
// the subscription helper used for device events.
package input

import (
	"math"
	"sync/atomic"
)

// SourceType classifies a Source.
type SourceType int

const (
	Disabled SourceType = iota
	Button
	AxisX
	AxisY
	AxisZ
	Slider
	DPad
)

func (t SourceType) String() string {
	switch t {
	case Disabled:
		return "disabled"
	case Button:
		return "button"
	case AxisX:
		return "axis-x"
	case AxisY:
		return "axis-y"
	case AxisZ:
		return "axis-z"
	case Slider:
		return "slider"
	case DPad:
		return "dpad"
	default:
		return "unknown"
	}
}

// IsAxis reports whether t is one of the absolute axis types.
func (t SourceType) IsAxis() bool {
	return t == AxisX || t == AxisY || t == AxisZ
}

// Source is a single scalar channel of a device. Its value is always in [0,1];
// buttons and dpad directions are 0 or 1.
//
// Only the owning device writes a Source. Reads are safe from any goroutine.
type Source struct {
	device Device
	name   string
	typ    SourceType
	offset int
	value  atomic.Uint64
}

// DisabledSource is the sentinel used by mappings that have no live source.
var DisabledSource = &Source{name: "Disabled", typ: Disabled, offset: -1}

// NewSource creates a source owned by device.
func NewSource(device Device, name string, typ SourceType, offset int) *Source {
	return &Source{device: device, name: name, typ: typ, offset: offset}
}

// Device returns the owning device, nil for the disabled sentinel.
func (s *Source) Device() Device { return s.device }

func (s *Source) Name() string { return s.name }

func (s *Source) Type() SourceType { return s.typ }

// Offset identifies the source within its device. It is stable across
// reconnects and is what mappings persist.
func (s *Source) Offset() int { return s.offset }

// IsDisabled reports whether s is the disabled sentinel (or nil).
func (s *Source) IsDisabled() bool { return s == nil || s.typ == Disabled }

func (s *Source) Value() float64 {
	return math.Float64frombits(s.value.Load())
}

// Refresh stores v and reports whether it differs from the previous value.
func (s *Source) Refresh(v float64) bool {
	old := math.Float64frombits(s.value.Swap(math.Float64bits(v)))
	return old != v
}
