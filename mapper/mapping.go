// Package mapper converts physical input sources into virtual controller
// channel values.
package mapper

import (
	"math"

	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/xinput"
)

// SourceRef is the persisted identity of a mapped source.
type SourceRef struct {
	Device string
	Offset int
}

// Mapping is a single calibration rule from a source to a channel.
//
// The raw source value is rescaled from [Min,Max] to [0,1] and clamped. Values
// closer to the channel's neutral point than Deadzone become neutral; values
// that leave neutral by less than AntiDeadzone are pushed out to it. Digital
// channels then threshold at 0.5.
type Mapping struct {
	Channel      xinput.Channel
	Ref          SourceRef
	Source       *input.Source
	Min          float64
	Max          float64
	Deadzone     float64
	AntiDeadzone float64
}

// NewMapping returns an identity mapping for ch with no source.
func NewMapping(ch xinput.Channel) *Mapping {
	return &Mapping{
		Channel: ch,
		Ref:     SourceRef{Offset: -1},
		Source:  input.DisabledSource,
		Min:     0,
		Max:     1,
	}
}

// Disabled reports whether the mapping has no live source.
func (m *Mapping) Disabled() bool { return m.Source.IsDisabled() }

// Evaluate returns the mapped value of the current source reading.
func (m *Mapping) Evaluate() float64 {
	if m.Disabled() {
		return m.Channel.DisabledValue()
	}
	return m.Transform(m.Source.Value())
}

// Transform applies the calibration pipeline to v.
func (m *Mapping) Transform(v float64) float64 {
	neutral := m.Channel.Neutral()

	span := m.Max - m.Min
	if span == 0 {
		return neutral
	}
	r := clamp01((v - m.Min) / span)

	dev := r - neutral
	if m.Deadzone > 0 && math.Abs(dev) <= m.Deadzone {
		r = neutral
		dev = 0
	}
	if m.AntiDeadzone > 0 && dev != 0 && math.Abs(dev) < m.AntiDeadzone {
		r = clamp01(neutral + math.Copysign(m.AntiDeadzone, dev))
	}

	if m.Channel.IsDigital() {
		if r > 0.5 {
			return 1
		}
		return 0
	}
	return r
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
