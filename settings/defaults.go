package settings

import (
	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/mapper"
	"github.com/Alia5/padbridge/xinput"
)

var defaultButtons = []xinput.Channel{
	xinput.A, xinput.B, xinput.X, xinput.Y,
	xinput.L1, xinput.R1,
	xinput.Back, xinput.Start,
	xinput.L3, xinput.R3,
	xinput.Home,
}

// DefaultMappings lays out a common gamepad: the first two axes drive the left
// stick, the next pair the right stick (skipping a trigger axis when the
// device has one), buttons follow the Xbox face and shoulder order and the
// first hat drives the dpad. The result has no output slot.
func DefaultMappings(dev input.Device, id, name string) *mapper.InputMapper {
	m := mapper.New(id, name)
	m.SetOutputSlot(mapper.NoOutputSlot)
	if dev.ForceFeedbackCount() > 0 {
		m.SetForceFeedbackDevice(dev.UniqueID())
	}

	var axes, buttons []*input.Source
	for _, src := range dev.Sources() {
		switch {
		case src.Type().IsAxis():
			axes = append(axes, src)
		case src.Type() == input.Button:
			buttons = append(buttons, src)
		}
	}

	add := func(ch xinput.Channel, src *input.Source) {
		m.Add(mapper.Mapping{
			Channel: ch,
			Ref:     mapper.SourceRef{Device: dev.UniqueID(), Offset: src.Offset()},
			Min:     0,
			Max:     1,
		})
	}
	axis := func(ch xinput.Channel, i int) {
		if i < len(axes) {
			add(ch, axes[i])
		}
	}

	axis(xinput.LX, 0)
	axis(xinput.LY, 1)
	switch {
	case len(axes) >= 5:
		axis(xinput.RX, 3)
		axis(xinput.RY, 4)
	default:
		axis(xinput.RX, 2)
		axis(xinput.RY, 3)
	}
	if len(axes) >= 6 {
		axis(xinput.L2, 2)
		axis(xinput.R2, 5)
	}

	for i, ch := range defaultButtons {
		if i >= len(buttons) {
			break
		}
		add(ch, buttons[i])
	}

	if dev.DPadCount() > 0 {
		dpad := [4]xinput.Channel{xinput.Up, xinput.Down, xinput.Left, xinput.Right}
		for i, dir := range input.DPadDirections {
			if src := dev.Source(input.DPadOffset(0, dir)); src != nil {
				add(dpad[i], src)
			}
		}
	}
	return m
}
