//go:build !windows

package vigem

import (
	"fmt"

	"github.com/Alia5/padbridge/driver"
)

type target struct{}

func unsupported() error {
	return fmt.Errorf("%w: ViGEmBus requires Windows", driver.ErrUnavailable)
}

func (d *Driver) Available() error { return unsupported() }

func (d *Driver) Plugin(idx int) error {
	if err := driver.CheckSlot(idx); err != nil {
		return err
	}
	return unsupported()
}

func (d *Driver) Unplug(idx int) error { return driver.CheckSlot(idx) }

func (d *Driver) Report(idx int, _ driver.Report) error {
	if err := driver.CheckSlot(idx); err != nil {
		return err
	}
	return driver.ErrNotPlugged
}

func (d *Driver) Close() error { return nil }
