// Package viiper drives virtual Xbox 360 controllers hosted by a VIIPER
// USB-IP server through its TCP API.
package viiper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/internal/log"
)

type Config struct {
	Addr     string        `help:"VIIPER API server address" default:"localhost:3242" env:"PADBRIDGE_VIIPER_ADDR"`
	Password string        `help:"VIIPER API password; '-' prompts on the terminal" env:"PADBRIDGE_VIIPER_PASSWORD"`
	BusID    uint32        `help:"Bus to attach controllers to; 0 reuses the first bus or creates one" default:"0" env:"PADBRIDGE_VIIPER_BUS"`
	Timeout  time.Duration `help:"API request timeout" default:"5s" env:"PADBRIDGE_VIIPER_TIMEOUT"`
}

type slot struct {
	devID string
	conn  net.Conn
	wmu   sync.Mutex
}

// Driver implements driver.Driver on top of a VIIPER server.
type Driver struct {
	client *Client
	cfg    Config
	logger *slog.Logger
	raw    log.RawLogger

	mu      sync.Mutex
	ready   bool
	busID   uint32
	ownsBus bool
	slots   [driver.MaxOutputDevices]*slot

	feedback driver.FeedbackHub
	wg       sync.WaitGroup
}

func New(cfg Config, logger *slog.Logger, raw log.RawLogger) (*Driver, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client, err := NewClient(cfg.Addr, &ClientConfig{
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		Password:     cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	return &Driver{client: client, cfg: cfg, logger: logger, raw: raw}, nil
}

func (d *Driver) Name() string { return "viiper" }

func (d *Driver) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.cfg.Timeout)
}

// Available pings the server and makes sure a bus exists.
func (d *Driver) Available() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}

	ctx, cancel := d.ctx()
	defer cancel()

	ping, err := d.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", driver.ErrUnavailable, err)
	}
	buses, err := d.client.BusList(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", driver.ErrUnavailable, err)
	}

	switch {
	case d.cfg.BusID != 0 && slices.Contains(buses, d.cfg.BusID):
		d.busID = d.cfg.BusID
	case d.cfg.BusID == 0 && len(buses) > 0:
		d.busID = buses[0]
	default:
		id, err := d.client.BusCreate(ctx, d.cfg.BusID)
		if err != nil {
			return fmt.Errorf("%w: create bus: %w", driver.ErrUnavailable, err)
		}
		d.busID = id
		d.ownsBus = true
	}
	d.ready = true
	d.logger.Info("Connected to VIIPER", "addr", d.cfg.Addr, "server", ping.Server, "version", ping.Version, "bus", d.busID)
	return nil
}

func (d *Driver) Plugin(idx int) error {
	if err := driver.CheckSlot(idx); err != nil {
		return err
	}
	if err := d.Available(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.slots[idx] != nil {
		return nil
	}

	ctx, cancel := d.ctx()
	defer cancel()
	devID, err := d.client.DeviceAdd(ctx, d.busID)
	if err != nil {
		return fmt.Errorf("add device: %w", err)
	}
	conn, err := d.client.OpenStream(ctx, d.busID, devID)
	if err != nil {
		_ = d.client.DeviceRemove(ctx, d.busID, devID)
		return fmt.Errorf("open stream: %w", err)
	}

	s := &slot{devID: devID, conn: conn}
	d.slots[idx] = s
	d.wg.Add(1)
	go d.readFeedback(idx, s)
	d.logger.Info("Plugged in virtual controller", "slot", idx, "bus", d.busID, "device", devID)
	return nil
}

func (d *Driver) readFeedback(idx int, s *slot) {
	defer d.wg.Done()
	var buf [2]byte
	for {
		if _, err := io.ReadFull(s.conn, buf[:]); err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				d.logger.Debug("feedback stream ended", "slot", idx, "error", err)
			}
			return
		}
		d.raw.Log(idx, false, buf[:])
		fb, _ := driver.UnmarshalFeedback(buf[:])
		d.feedback.Notify(idx, fb)
	}
}

func (d *Driver) Report(idx int, r driver.Report) error {
	if err := driver.CheckSlot(idx); err != nil {
		return err
	}
	d.mu.Lock()
	s := d.slots[idx]
	d.mu.Unlock()
	if s == nil {
		return driver.ErrNotPlugged
	}

	b, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(d.cfg.Timeout))
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	d.raw.Log(idx, true, b)
	return nil
}

func (d *Driver) Unplug(idx int) error {
	if err := driver.CheckSlot(idx); err != nil {
		return err
	}
	d.mu.Lock()
	s := d.slots[idx]
	d.slots[idx] = nil
	busID := d.busID
	d.mu.Unlock()
	if s == nil {
		return nil
	}

	_ = s.conn.Close()
	ctx, cancel := d.ctx()
	defer cancel()
	if err := d.client.DeviceRemove(ctx, busID, s.devID); err != nil {
		d.logger.Debug("remove device failed", "slot", idx, "device", s.devID, "error", err)
	}
	d.logger.Info("Unplugged virtual controller", "slot", idx)
	return nil
}

func (d *Driver) OnFeedback(idx int, fn func(driver.Feedback)) (func(), bool) {
	return d.feedback.Subscribe(idx, fn), true
}

// Close unplugs every slot and removes the bus if this driver created it.
func (d *Driver) Close() error {
	for i := 0; i < driver.MaxOutputDevices; i++ {
		_ = d.Unplug(i)
	}
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ownsBus {
		ctx, cancel := d.ctx()
		defer cancel()
		if err := d.client.BusRemove(ctx, d.busID); err != nil {
			d.logger.Debug("remove bus failed", "bus", d.busID, "error", err)
		}
		d.ownsBus = false
	}
	d.ready = false
	return nil
}
