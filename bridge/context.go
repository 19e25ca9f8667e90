// Package bridge ties physical devices, mappers and the virtual driver
// together: the device registries, the running game controllers and the
// loops that keep devices polled and discovered.
package bridge

import (
	"log/slog"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/mapper"
)

// Context is the dependency container shared by every bridge component.
type Context struct {
	Inputs      *InputDevices
	Outputs     *OutputDevices
	Controllers *Controllers
	Logger      *slog.Logger
}

// NewContext probes drv once and returns empty registries.
func NewContext(drv driver.Driver, logger *slog.Logger) *Context {
	return &Context{
		Inputs:      &InputDevices{},
		Outputs:     NewOutputDevices(drv, logger),
		Controllers: &Controllers{},
		Logger:      logger,
	}
}

// NewController registers a controller for m, bound to the current devices.
// It returns the existing controller when one with the same id exists.
func (b *Context) NewController(m *mapper.InputMapper) *GameController {
	if c := b.Controllers.Get(m.ID()); c != nil {
		return c
	}
	c := newGameController(b, m)
	c.Rebind(b.Inputs.List())
	b.Controllers.Add(c)
	return c
}

// Ready reports whether every device c's mapper references is registered
// and connected.
func (b *Context) Ready(c *GameController) bool {
	ids := c.Mapper().DeviceIDs()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		d := b.Inputs.Find(id)
		if d == nil || !d.Connected() {
			return false
		}
	}
	return true
}

// AutoStart starts every stopped controller that is flagged to start when
// connected, or that was stopped by a lost device, once its devices are
// ready.
func (b *Context) AutoStart() {
	for _, c := range b.Controllers.List() {
		if c.State() == Running {
			continue
		}
		if !c.Mapper().StartAutomatically() && !c.RestartPending() {
			continue
		}
		if !b.Ready(c) {
			continue
		}
		if _, err := c.Start(nil); err != nil {
			b.Logger.Warn("Automatic start failed", "controller", c.ID(), "error", err)
		}
	}
}

// Close stops every controller, closes every device and the driver.
func (b *Context) Close() error {
	for _, c := range b.Controllers.List() {
		c.Stop()
		c.Close()
	}
	for _, d := range b.Inputs.List() {
		b.Inputs.Remove(d.UniqueID())
		if err := d.Close(); err != nil {
			b.Logger.Debug("device close failed", "device", d.UniqueID(), "error", err)
		}
	}
	return b.Outputs.Driver().Close()
}
