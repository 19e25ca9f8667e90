// Package xinput describes the channels of a virtual Xbox 360 controller.
package xinput

import (
	"fmt"
	"strings"
)

// Channel is one addressable value of the virtual controller.
type Channel int

const (
	A Channel = iota
	B
	X
	Y
	L1
	R1
	L2
	R2
	L3
	R3
	Start
	Back
	Home
	Up
	Down
	Left
	Right
	LX
	LY
	RX
	RY

	ChannelCount int = iota
)

var channelNames = [ChannelCount]string{
	"A", "B", "X", "Y", "L1", "R1", "L2", "R2", "L3", "R3",
	"Start", "Back", "Home", "Up", "Down", "Left", "Right",
	"LX", "LY", "RX", "RY",
}

// Channels returns every channel in declaration order.
func Channels() []Channel {
	out := make([]Channel, ChannelCount)
	for i := range out {
		out[i] = Channel(i)
	}
	return out
}

func (c Channel) Valid() bool { return c >= 0 && int(c) < ChannelCount }

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel accepts a channel name, case-insensitively.
func ParseChannel(s string) (Channel, error) {
	for i, name := range channelNames {
		if strings.EqualFold(name, s) {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

// IsAxis reports whether c is one of the bidirectional stick axes.
func (c Channel) IsAxis() bool { return c >= LX && c <= RY }

// IsSlider reports whether c is a trigger.
func (c Channel) IsSlider() bool { return c == L2 || c == R2 }

func (c Channel) IsDPad() bool { return c >= Up && c <= Right }

func (c Channel) IsButton() bool {
	return c.Valid() && !c.IsAxis() && !c.IsSlider() && !c.IsDPad()
}

// IsDigital reports whether c only carries 0 or 1.
func (c Channel) IsDigital() bool { return c.IsButton() || c.IsDPad() }

// Neutral is the resting value of c: centered for axes, released otherwise.
func (c Channel) Neutral() float64 {
	if c.IsAxis() {
		return 0.5
	}
	return 0
}

// DisabledValue is reported for c when its mapping has no live source.
func (c Channel) DisabledValue() float64 { return c.Neutral() }
