package input

import (
	"errors"
	"fmt"
	"strings"
)

// DPadDirection is a set of pressed dpad directions.
type DPadDirection uint8

const (
	DPadNone  DPadDirection = 0
	DPadUp    DPadDirection = 1
	DPadDown  DPadDirection = 2
	DPadLeft  DPadDirection = 4
	DPadRight DPadDirection = 8
)

// HatCentered is the raw hat value of a released POV.
const HatCentered = -1

// DPadOffsetBase is the offset of the first dpad source; every hat owns four
// consecutive offsets in Up, Down, Left, Right order.
const DPadOffsetBase = 1000

// ErrInvalidHat is returned for raw hat values that are not one of the nine
// defined positions.
var ErrInvalidHat = errors.New("invalid hat value")

// DPadDirections lists the four single directions in source order.
var DPadDirections = [4]DPadDirection{DPadUp, DPadDown, DPadLeft, DPadRight}

// DecodeHat resolves a raw POV reading, in hundredths of a degree clockwise
// from north, into a direction set.
func DecodeHat(raw int) (DPadDirection, error) {
	switch raw {
	case HatCentered:
		return DPadNone, nil
	case 0:
		return DPadUp, nil
	case 4500:
		return DPadUp | DPadRight, nil
	case 9000:
		return DPadRight, nil
	case 13500:
		return DPadDown | DPadRight, nil
	case 18000:
		return DPadDown, nil
	case 22500:
		return DPadDown | DPadLeft, nil
	case 27000:
		return DPadLeft, nil
	case 31500:
		return DPadUp | DPadLeft, nil
	default:
		return DPadNone, fmt.Errorf("%w: %d", ErrInvalidHat, raw)
	}
}

// DPadFromFlags combines four pressed flags into a direction set.
func DPadFromFlags(up, down, left, right bool) DPadDirection {
	var d DPadDirection
	if up {
		d |= DPadUp
	}
	if down {
		d |= DPadDown
	}
	if left {
		d |= DPadLeft
	}
	if right {
		d |= DPadRight
	}
	return d
}

func (d DPadDirection) Has(dir DPadDirection) bool { return d&dir == dir && dir != 0 }

func (d DPadDirection) String() string {
	if d == DPadNone {
		return "none"
	}
	var parts []string
	for i, dir := range DPadDirections {
		if d.Has(dir) {
			parts = append(parts, dpadNames[i])
		}
	}
	return strings.Join(parts, "+")
}

var dpadNames = [4]string{"up", "down", "left", "right"}

// DPadOffset returns the source offset of one direction of a hat.
func DPadOffset(hat int, dir DPadDirection) int {
	for i, d := range DPadDirections {
		if d == dir {
			return DPadOffsetBase + hat*4 + i
		}
	}
	return -1
}

// DPadSources creates the four direction sources of a hat.
func DPadSources(device Device, hat int) [4]*Source {
	var out [4]*Source
	for i, dir := range DPadDirections {
		name := fmt.Sprintf("DPad%d %s", hat+1, strings.ToUpper(dpadNames[i][:1])+dpadNames[i][1:])
		out[i] = NewSource(device, name, DPad, DPadOffset(hat, dir))
	}
	return out
}
