// Package driver defines the virtual controller driver boundary and the
// Xbox 360 report shared by every implementation.
package driver

import (
	"errors"
	"fmt"
)

// MaxOutputDevices is the number of virtual controller slots a driver offers.
const MaxOutputDevices = 4

var (
	// ErrUnavailable is returned when the driver cannot be used on this host.
	ErrUnavailable = errors.New("virtual controller driver unavailable")
	ErrInvalidSlot = errors.New("invalid output slot")
	ErrNotPlugged  = errors.New("output slot not plugged in")
)

// Feedback is a rumble request in the driver's native 0-255 range.
type Feedback struct {
	Large byte
	Small byte
}

// Driver emulates up to MaxOutputDevices Xbox 360 controllers.
type Driver interface {
	Name() string
	// Available returns nil when the driver can plug in controllers.
	Available() error
	Plugin(slot int) error
	Unplug(slot int) error
	Report(slot int, r Report) error
	// OnFeedback subscribes fn to rumble events of slot. ok is false when the
	// driver never produces feedback.
	OnFeedback(slot int, fn func(Feedback)) (unsubscribe func(), ok bool)
	Close() error
}

// CheckSlot validates a slot index.
func CheckSlot(slot int) error {
	if slot < 0 || slot >= MaxOutputDevices {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	return nil
}
