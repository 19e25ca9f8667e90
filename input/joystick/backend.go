// Package joystick adapts OS joysticks and gamepads to input.Device.
//
// The OS API sits behind Backend and Handle so the polling, decoding and
// force feedback logic is independent of how samples are obtained.
package joystick

import (
	"errors"
	"fmt"
)

const (
	// MaxAxes is the number of absolute axes a device can expose.
	MaxAxes = 24
	// MaxButtons caps the number of buttons read per device.
	MaxButtons = 128
	// AxisMax is the largest raw axis and slider value.
	AxisMax = 65535

	SliderOffsetBase = 100
	ButtonOffsetBase = 200

	// EmulatedGUID identifies the virtual Xbox 360 pad so it is never bridged
	// back into itself.
	EmulatedGUID = "028e045e-0000-0000-0000-504944564944"
)

var (
	ErrInvalidAxis  = errors.New("axis value out of range")
	ErrDisconnected = errors.New("joystick disconnected")
)

// AxisNames names the axes by index. Index i%3 selects the X, Y or Z member
// of each group.
var AxisNames = [MaxAxes]string{
	"X", "Y", "Z", "RX", "RY", "RZ",
	"AX", "AY", "AZ", "ARX", "ARY", "ARZ",
	"VX", "VY", "VZ", "VRX", "VRY", "VRZ",
	"FX", "FY", "FZ", "FRX", "FRY", "FRZ",
}

type Capabilities struct {
	Axes                   int
	Buttons                int
	POVs                   int
	Sliders                int
	ForceFeedbackActuators int
}

// Info describes an attached device as reported by enumeration.
type Info struct {
	InstanceID   string
	ProductName  string
	ProductGUID  string
	Capabilities Capabilities
}

// State is one raw sample. Axes and sliders are 0..AxisMax, POVs are in
// hundredths of a degree or input.HatCentered.
type State struct {
	Axes    []int
	Sliders []int
	Buttons []bool
	POVs    []int
}

// ConstantForce describes a constant force on one actuator. Magnitude is
// 0..MaxMagnitude.
type ConstantForce struct {
	Actuator  int
	Magnitude int
}

type Effect interface {
	Start() error
	Dispose()
}

// Handle is an opened device.
type Handle interface {
	// Read returns the current sample. Any error is treated as a lost device.
	Read() (State, error)
	CreateConstantForce(ConstantForce) (Effect, error)
	Close() error
}

// Backend enumerates and opens devices.
type Backend interface {
	Enumerate() ([]Info, error)
	Open(Info) (Handle, error)
}

// ProductGUID builds the DirectInput style product guid from USB ids.
func ProductGUID(vendor, product uint16) string {
	return fmt.Sprintf("%04x%04x-0000-0000-0000-504944564944", product, vendor)
}

// Excluded returns why info must not be bridged, or "" when it may be.
func Excluded(info Info) string {
	switch {
	case info.ProductGUID == EmulatedGUID:
		return "emulated Xbox 360 controller"
	case info.Capabilities.Axes == 0 && info.Capabilities.Buttons == 0:
		return "no axes or buttons"
	default:
		return ""
	}
}
