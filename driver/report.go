package driver

import (
	"encoding/binary"
	"io"

	"github.com/Alia5/padbridge/xinput"
	"github.com/Alia5/padbridge/xoutput"
)

// Button bitmasks of the XUSB report.
const (
	ButtonDPadUp    = 0x0001
	ButtonDPadDown  = 0x0002
	ButtonDPadLeft  = 0x0004
	ButtonDPadRight = 0x0008
	ButtonStart     = 0x0010
	ButtonBack      = 0x0020
	ButtonLThumb    = 0x0040
	ButtonRThumb    = 0x0080
	ButtonLShoulder = 0x0100
	ButtonRShoulder = 0x0200
	ButtonGuide     = 0x0400
	ButtonA         = 0x1000
	ButtonB         = 0x2000
	ButtonX         = 0x4000
	ButtonY         = 0x8000
)

// ReportSize is the length of the marshaled report.
const ReportSize = 20

var buttonMasks = map[xinput.Channel]uint16{
	xinput.A:     ButtonA,
	xinput.B:     ButtonB,
	xinput.X:     ButtonX,
	xinput.Y:     ButtonY,
	xinput.L1:    ButtonLShoulder,
	xinput.R1:    ButtonRShoulder,
	xinput.L3:    ButtonLThumb,
	xinput.R3:    ButtonRThumb,
	xinput.Start: ButtonStart,
	xinput.Back:  ButtonBack,
	xinput.Home:  ButtonGuide,
	xinput.Up:    ButtonDPadUp,
	xinput.Down:  ButtonDPadDown,
	xinput.Left:  ButtonDPadLeft,
	xinput.Right: ButtonDPadRight,
}

// Report is one Xbox 360 input report (XUSB layout).
type Report struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	ThumbLX      int16
	ThumbLY      int16
	ThumbRX      int16
	ThumbRY      int16
}

// NewReport converts channel values into driver units: buttons press above
// 0.5, triggers scale to 0-255 and stick axes to a signed 16 bit range
// centered on 0.5.
func NewReport(s xoutput.State) Report {
	var r Report
	for ch, mask := range buttonMasks {
		if s.Pressed(ch) {
			r.Buttons |= mask
		}
	}
	r.LeftTrigger = triggerValue(s.Value(xinput.L2))
	r.RightTrigger = triggerValue(s.Value(xinput.R2))
	r.ThumbLX = axisValue(s.Value(xinput.LX))
	r.ThumbLY = axisValue(s.Value(xinput.LY))
	r.ThumbRX = axisValue(s.Value(xinput.RX))
	r.ThumbRY = axisValue(s.Value(xinput.RY))
	return r
}

func triggerValue(v float64) uint8 {
	return uint8(clamp(v, 0, 1) * 255)
}

func axisValue(v float64) int16 {
	return int16((clamp(v, 0, 1) - 0.5) * 2 * 32767)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MarshalBinary encodes the report into the 20 byte wire layout:
//
//	0-3:   Buttons (little-endian u32)
//	4:     LT
//	5:     RT
//	6-13:  LX, LY, RX, RY (little-endian i16)
//	14-19: reserved
func (r Report) MarshalBinary() ([]byte, error) {
	b := make([]byte, ReportSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(r.Buttons))
	b[4] = r.LeftTrigger
	b[5] = r.RightTrigger
	binary.LittleEndian.PutUint16(b[6:8], uint16(r.ThumbLX))
	binary.LittleEndian.PutUint16(b[8:10], uint16(r.ThumbLY))
	binary.LittleEndian.PutUint16(b[10:12], uint16(r.ThumbRX))
	binary.LittleEndian.PutUint16(b[12:14], uint16(r.ThumbRY))
	return b, nil
}

// UnmarshalBinary decodes the 20 byte wire layout.
func (r *Report) UnmarshalBinary(data []byte) error {
	if len(data) < ReportSize {
		return io.ErrUnexpectedEOF
	}
	r.Buttons = uint16(binary.LittleEndian.Uint32(data[0:4]))
	r.LeftTrigger = data[4]
	r.RightTrigger = data[5]
	r.ThumbLX = int16(binary.LittleEndian.Uint16(data[6:8]))
	r.ThumbLY = int16(binary.LittleEndian.Uint16(data[8:10]))
	r.ThumbRX = int16(binary.LittleEndian.Uint16(data[10:12]))
	r.ThumbRY = int16(binary.LittleEndian.Uint16(data[12:14]))
	return nil
}

// UnmarshalFeedback decodes a 2 byte rumble message (large, small).
func UnmarshalFeedback(data []byte) (Feedback, error) {
	if len(data) < 2 {
		return Feedback{}, io.ErrUnexpectedEOF
	}
	return Feedback{Large: data[0], Small: data[1]}, nil
}
