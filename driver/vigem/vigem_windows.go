//go:build windows

package vigem

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/Alia5/padbridge/driver"

	"golang.org/x/sys/windows"
)

const (
	errNone                = 0x20000000
	errBusNotFound         = 0xE0000001
	errNoFreeSlot          = 0xE0000002
	errInvalidTarget       = 0xE0000003
	errRemovalFailed       = 0xE0000004
	errAlreadyConnected    = 0xE0000005
	errTargetUninitialized = 0xE0000006
	errTargetNotPluggedIn  = 0xE0000007
	errBusVersionMismatch  = 0xE0000008
	errBusAccessFailed     = 0xE0000009
	errCallbackRegistered  = 0xE0000010
	errCallbackNotFound    = 0xE0000011
	errBusAlreadyConnected = 0xE0000012
	errBusInvalidHandle    = 0xE0000013
	errUserIndexOutOfRange = 0xE0000014
)

var (
	client = windows.NewLazyDLL("ViGEmClient.dll")

	procAlloc                = client.NewProc("vigem_alloc")
	procFree                 = client.NewProc("vigem_free")
	procConnect              = client.NewProc("vigem_connect")
	procDisconnect           = client.NewProc("vigem_disconnect")
	procTargetAdd            = client.NewProc("vigem_target_add")
	procTargetFree           = client.NewProc("vigem_target_free")
	procTargetRemove         = client.NewProc("vigem_target_remove")
	procX360Alloc            = client.NewProc("vigem_target_x360_alloc")
	procX360Update           = client.NewProc("vigem_target_x360_update")
	procX360RegisterNotify   = client.NewProc("vigem_target_x360_register_notification")
	procX360UnregisterNotify = client.NewProc("vigem_target_x360_unregister_notification")
)

var errorText = map[uintptr]string{
	errBusNotFound:         "bus not found",
	errNoFreeSlot:          "no free slot",
	errInvalidTarget:       "invalid target",
	errRemovalFailed:       "removal failed",
	errAlreadyConnected:    "already connected",
	errTargetUninitialized: "target uninitialized",
	errTargetNotPluggedIn:  "target not plugged in",
	errBusVersionMismatch:  "bus version mismatch",
	errBusAccessFailed:     "bus access failed",
	errCallbackRegistered:  "callback already registered",
	errCallbackNotFound:    "callback not found",
	errBusAlreadyConnected: "bus already connected",
	errBusInvalidHandle:    "bus invalid handle",
	errUserIndexOutOfRange: "xusb user index out of range",
}

// Error is a VIGEM_ERROR code returned by ViGEmClient.
type Error uintptr

func (e Error) Error() string {
	if s, ok := errorText[uintptr(e)]; ok {
		return "vigem: " + s
	}
	return fmt.Sprintf("vigem: error 0x%08x", uintptr(e))
}

func check(code uintptr) error {
	if code == errNone {
		return nil
	}
	return Error(code)
}

// xusbReport mirrors XUSB_REPORT. It is 12 bytes and passed by reference
// under the x64 calling convention.
type xusbReport struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	ThumbLX      int16
	ThumbLY      int16
	ThumbRX      int16
	ThumbRY      int16
}

type target struct {
	handle uintptr
}

var (
	notifyOnce sync.Once
	notifyCB   uintptr
	notifyMu   sync.RWMutex
	notifyFns  = map[uintptr]func(driver.Feedback){}
)

// notificationCallback is created once; windows.NewCallback handles are
// never released.
func notificationCallback() uintptr {
	notifyOnce.Do(func() {
		notifyCB = windows.NewCallback(func(client, target, large, small, led, user uintptr) uintptr {
			notifyMu.RLock()
			fn := notifyFns[target]
			notifyMu.RUnlock()
			if fn != nil {
				fn(driver.Feedback{Large: byte(large), Small: byte(small)})
			}
			return 0
		})
	})
	return notifyCB
}

// Available loads ViGEmClient.dll and connects to the bus driver once.
func (d *Driver) Available() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connectLocked()
}

func (d *Driver) connectLocked() error {
	if d.connected {
		return nil
	}
	if err := client.Load(); err != nil {
		return fmt.Errorf("%w: %w", driver.ErrUnavailable, err)
	}
	handle, _, _ := procAlloc.Call()
	if handle == 0 {
		return fmt.Errorf("%w: vigem_alloc failed", driver.ErrUnavailable)
	}
	code, _, _ := procConnect.Call(handle)
	if err := check(code); err != nil {
		procFree.Call(handle)
		return fmt.Errorf("%w: %w", driver.ErrUnavailable, err)
	}
	d.client = handle
	d.connected = true
	d.logger.Info("Connected to ViGEmBus")
	return nil
}

func (d *Driver) Plugin(idx int) error {
	if err := driver.CheckSlot(idx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.connectLocked(); err != nil {
		return err
	}
	if d.targets[idx] != nil {
		return nil
	}

	handle, _, _ := procX360Alloc.Call()
	if handle == 0 {
		return errors.New("vigem_target_x360_alloc failed")
	}
	code, _, _ := procTargetAdd.Call(d.client, handle)
	if err := check(code); err != nil {
		procTargetFree.Call(handle)
		return fmt.Errorf("add target: %w", err)
	}

	t := &target{handle: handle}
	notifyMu.Lock()
	notifyFns[handle] = func(fb driver.Feedback) {
		d.raw.Log(idx, false, []byte{fb.Large, fb.Small})
		d.feedback.Notify(idx, fb)
	}
	notifyMu.Unlock()
	code, _, _ = procX360RegisterNotify.Call(d.client, handle, notificationCallback(), 0)
	if err := check(code); err != nil {
		d.logger.Warn("Rumble notifications unavailable", "slot", idx, "error", err)
	}

	d.targets[idx] = t
	d.logger.Info("Plugged in virtual controller", "slot", idx)
	return nil
}

func (d *Driver) Report(idx int, r driver.Report) error {
	if err := driver.CheckSlot(idx); err != nil {
		return err
	}
	d.mu.Lock()
	t := d.targets[idx]
	c := d.client
	d.mu.Unlock()
	if t == nil {
		return driver.ErrNotPlugged
	}

	rep := xusbReport{
		Buttons:      r.Buttons,
		LeftTrigger:  r.LeftTrigger,
		RightTrigger: r.RightTrigger,
		ThumbLX:      r.ThumbLX,
		ThumbLY:      r.ThumbLY,
		ThumbRX:      r.ThumbRX,
		ThumbRY:      r.ThumbRY,
	}
	code, _, _ := procX360Update.Call(c, t.handle, uintptr(unsafe.Pointer(&rep)))
	if err := check(code); err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	d.raw.Log(idx, true, unsafe.Slice((*byte)(unsafe.Pointer(&rep)), unsafe.Sizeof(rep)))
	return nil
}

func (d *Driver) Unplug(idx int) error {
	if err := driver.CheckSlot(idx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.targets[idx]
	if t == nil {
		return nil
	}
	d.targets[idx] = nil

	procX360UnregisterNotify.Call(t.handle)
	notifyMu.Lock()
	delete(notifyFns, t.handle)
	notifyMu.Unlock()

	code, _, _ := procTargetRemove.Call(d.client, t.handle)
	procTargetFree.Call(t.handle)
	if err := check(code); err != nil {
		return fmt.Errorf("remove target: %w", err)
	}
	d.logger.Info("Unplugged virtual controller", "slot", idx)
	return nil
}

func (d *Driver) Close() error {
	for i := range driver.MaxOutputDevices {
		if err := d.Unplug(i); err != nil {
			d.logger.Debug("unplug failed", "slot", i, "error", err)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		procDisconnect.Call(d.client)
		procFree.Call(d.client)
		d.client = 0
		d.connected = false
	}
	return nil
}
