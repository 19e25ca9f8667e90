package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Alia5/padbridge/input"
	"github.com/Alia5/padbridge/input/joystick"
)

const (
	DefaultDiscoveryInterval = 5 * time.Second
	// DefaultRetryDelay is how long after a disconnect the device list is
	// refreshed again.
	DefaultRetryDelay = time.Second
)

// Discovery keeps InputDevices in sync with the joysticks a Backend reports.
type Discovery struct {
	backend joystick.Backend
	bctx    *Context
	logger  *slog.Logger

	Interval   time.Duration
	RetryDelay time.Duration
	// Configure, if set, runs on every new device before it is registered.
	Configure func(*joystick.Device)

	mu      sync.Mutex
	trigger chan struct{}
}

func NewDiscovery(backend joystick.Backend, bctx *Context, logger *slog.Logger) *Discovery {
	return &Discovery{
		backend:    backend,
		bctx:       bctx,
		logger:     logger,
		Interval:   DefaultDiscoveryInterval,
		RetryDelay: DefaultRetryDelay,
		trigger:    make(chan struct{}, 1),
	}
}

// uniqueName returns "{product} {n}" with the smallest n not in use.
func (d *Discovery) uniqueName(product string) string {
	used := map[string]bool{}
	for _, dev := range d.bctx.Inputs.List() {
		used[dev.DisplayName()] = true
	}
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s %d", product, n)
		if !used[name] {
			return name
		}
	}
}

func (d *Discovery) scheduleRefresh() {
	time.AfterFunc(d.RetryDelay, func() {
		select {
		case d.trigger <- struct{}{}:
		default:
		}
	})
}

// Refresh enumerates once: lost devices are removed and closed, new ones are
// opened, registered and started with ctx. Controllers are rebound and
// auto-started when anything changed.
func (d *Discovery) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos, err := d.backend.Enumerate()
	if err != nil {
		return fmt.Errorf("enumerate joysticks: %w", err)
	}
	present := map[string]joystick.Info{}
	for _, info := range infos {
		if reason := joystick.Excluded(info); reason != "" {
			d.logger.Debug("Skipping device", "device", info.ProductName, "instance", info.InstanceID, "reason", reason)
			continue
		}
		present[info.InstanceID] = info
	}

	changed := false
	for _, dev := range d.bctx.Inputs.List() {
		js, ok := dev.(*joystick.Device)
		if !ok {
			continue
		}
		if _, still := present[js.UniqueID()]; still && js.Connected() {
			continue
		}
		d.bctx.Inputs.Remove(js.UniqueID())
		if err := js.Close(); err != nil {
			d.logger.Debug("device close failed", "device", js.UniqueID(), "error", err)
		}
		d.logger.Info("Input device removed", "device", js.DisplayName())
		changed = true
	}

	for _, info := range infos {
		if _, ok := present[info.InstanceID]; !ok {
			continue
		}
		if d.bctx.Inputs.Find(info.InstanceID) != nil {
			continue
		}
		h, err := d.backend.Open(info)
		if err != nil {
			d.logger.Warn("Failed to open device", "device", info.ProductName, "error", err)
			continue
		}
		dev := joystick.NewDevice(info, h, d.logger)
		dev.SetDisplayName(d.uniqueName(info.ProductName))
		if d.Configure != nil {
			d.Configure(dev)
		}
		dev.OnDisconnected(func(input.Device) { d.scheduleRefresh() })
		d.bctx.Inputs.Add(dev)
		dev.Start(ctx)
		d.logger.Info("Input device added", "device", dev.DisplayName(), "instance", info.InstanceID,
			"axes", info.Capabilities.Axes, "buttons", info.Capabilities.Buttons, "hats", info.Capabilities.POVs)
		changed = true
	}

	if changed {
		d.bctx.Controllers.Rebind(d.bctx.Inputs.List())
		d.bctx.AutoStart()
	}
	return nil
}

// Run refreshes immediately, then every Interval and shortly after each
// disconnect, until ctx is done.
func (d *Discovery) Run(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil {
		d.logger.Error("Device discovery failed", "error", err)
	}
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.trigger:
		}
		if err := d.Refresh(ctx); err != nil {
			d.logger.Error("Device discovery failed", "error", err)
		}
	}
}
