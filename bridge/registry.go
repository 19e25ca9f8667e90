package bridge

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/input"
)

// DeviceEvent reports a device joining or leaving InputDevices.
type DeviceEvent struct {
	Device  input.Device
	Removed bool
}

// InputDevices is the registry of physical devices known to the bridge.
type InputDevices struct {
	mu      sync.RWMutex
	devices []input.Device
	changed input.Notifier[DeviceEvent]
}

// Add registers d. It returns false when a device with the same id exists.
func (r *InputDevices) Add(d input.Device) bool {
	r.mu.Lock()
	for _, existing := range r.devices {
		if existing.UniqueID() == d.UniqueID() {
			r.mu.Unlock()
			return false
		}
	}
	r.devices = append(r.devices, d)
	r.mu.Unlock()

	r.changed.Notify(DeviceEvent{Device: d})
	return true
}

// Remove unregisters the device with id and returns it, or nil.
func (r *InputDevices) Remove(id string) input.Device {
	r.mu.Lock()
	idx := slices.IndexFunc(r.devices, func(d input.Device) bool { return d.UniqueID() == id })
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	d := r.devices[idx]
	r.devices = slices.Delete(r.devices, idx, idx+1)
	r.mu.Unlock()

	r.changed.Notify(DeviceEvent{Device: d, Removed: true})
	return d
}

func (r *InputDevices) Find(id string) input.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.UniqueID() == id {
			return d
		}
	}
	return nil
}

// List returns a snapshot of the registered devices.
func (r *InputDevices) List() []input.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.devices)
}

func (r *InputDevices) OnChanged(fn func(DeviceEvent)) func() {
	return r.changed.Subscribe(fn)
}

// OutputDevices is the virtual driver and its slot catalog. Availability is
// probed once, when the registry is created.
type OutputDevices struct {
	drv      driver.Driver
	availErr error
}

func NewOutputDevices(drv driver.Driver, logger *slog.Logger) *OutputDevices {
	o := &OutputDevices{drv: drv}
	if err := drv.Available(); err != nil {
		o.availErr = err
		logger.Warn("Virtual controller driver unavailable, controllers cannot start", "driver", drv.Name(), "error", err)
	} else {
		logger.Info("Virtual controller driver ready", "driver", drv.Name())
	}
	return o
}

func (o *OutputDevices) Driver() driver.Driver { return o.drv }

// Available returns the error recorded at creation.
func (o *OutputDevices) Available() error { return o.availErr }

// Slots lists every slot index.
func (o *OutputDevices) Slots() []int {
	out := make([]int, driver.MaxOutputDevices)
	for i := range out {
		out[i] = i
	}
	return out
}

// Controllers holds every configured GameController and the slot ownership
// table.
type Controllers struct {
	mu          sync.RWMutex
	controllers []*GameController

	slotMu sync.Mutex
	slots  [driver.MaxOutputDevices]*GameController
}

// Add registers c. It returns false when a controller with the same id
// exists.
func (r *Controllers) Add(c *GameController) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.controllers {
		if existing.ID() == c.ID() {
			return false
		}
	}
	r.controllers = append(r.controllers, c)
	return true
}

// Remove stops and unregisters the controller with id.
func (r *Controllers) Remove(id string) *GameController {
	r.mu.Lock()
	idx := slices.IndexFunc(r.controllers, func(c *GameController) bool { return c.ID() == id })
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	c := r.controllers[idx]
	r.controllers = slices.Delete(r.controllers, idx, idx+1)
	r.mu.Unlock()

	c.Stop()
	c.Close()
	return c
}

func (r *Controllers) Get(id string) *GameController {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.controllers {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

// List returns a snapshot of the registered controllers.
func (r *Controllers) List() []*GameController {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.controllers)
}

// ClaimSlot gives c exclusive use of slot. A slot is claimed once per
// session, so a second claim by the same controller fails too.
func (r *Controllers) ClaimSlot(slot int, c *GameController) error {
	if err := driver.CheckSlot(slot); err != nil {
		return err
	}
	r.slotMu.Lock()
	defer r.slotMu.Unlock()
	if owner := r.slots[slot]; owner != nil {
		return fmt.Errorf("%w: slot %d is used by %s", ErrSlotInUse, slot, owner.ID())
	}
	r.slots[slot] = c
	return nil
}

// ReleaseSlot frees slot if c holds it.
func (r *Controllers) ReleaseSlot(slot int, c *GameController) {
	if driver.CheckSlot(slot) != nil {
		return
	}
	r.slotMu.Lock()
	defer r.slotMu.Unlock()
	if r.slots[slot] == c {
		r.slots[slot] = nil
	}
}

// SlotOwner returns the controller holding slot, or nil.
func (r *Controllers) SlotOwner(slot int) *GameController {
	if driver.CheckSlot(slot) != nil {
		return nil
	}
	r.slotMu.Lock()
	defer r.slotMu.Unlock()
	return r.slots[slot]
}

// Rebind re-resolves every controller's mappings against devices.
func (r *Controllers) Rebind(devices []input.Device) {
	for _, c := range r.List() {
		c.Rebind(devices)
	}
}
