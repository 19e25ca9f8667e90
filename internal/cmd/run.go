package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/padbridge/bridge"
	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/driver/viiper"
	"github.com/Alia5/padbridge/input/joystick"
	"github.com/Alia5/padbridge/input/mouse"
	"github.com/Alia5/padbridge/internal/log"
	"github.com/Alia5/padbridge/internal/monitor"
	"github.com/Alia5/padbridge/internal/util"
	"github.com/Alia5/padbridge/settings"
)

type Run struct {
	Driver            string        `help:"Virtual controller driver" default:"auto" enum:"auto,viiper,vigem" env:"PADBRIDGE_DRIVER"`
	Viiper            viiper.Config `embed:"" prefix:"viiper-"`
	Settings          string        `help:"Mappings file (json, yaml or toml); defaults to the config directory" env:"PADBRIDGE_SETTINGS"`
	RefreshInterval   time.Duration `help:"Period of the shared device poll trigger" default:"500us" env:"PADBRIDGE_REFRESH_INTERVAL"`
	DiscoveryInterval time.Duration `help:"Period of device re-enumeration" default:"5s" env:"PADBRIDGE_DISCOVERY_INTERVAL"`
	Mouse             bool          `help:"Expose mouse buttons as an input device" default:"true" negatable:"" env:"PADBRIDGE_MOUSE"`
	MonitorAddr       string        `help:"Serve controller state over websocket at this address (/ws)" env:"PADBRIDGE_MONITOR_ADDR"`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger, backends JoystickBackendFactory) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, err := openDriver(r.Driver, r.Viiper, logger, rawLogger)
	if err != nil {
		return err
	}
	backend, closeBackend, err := openBackend(backends, logger)
	if err != nil {
		_ = drv.Close()
		return err
	}
	defer closeBackend()

	if util.IsRunFromGUI() {
		go func() {
			time.Sleep(250 * time.Millisecond)
			util.HideConsoleWindow()
		}()
	}
	return r.Serve(ctx, logger, drv, backend)
}

// Serve runs the bridge until ctx is done. It takes ownership of drv.
func (r *Run) Serve(ctx context.Context, logger *slog.Logger, drv driver.Driver, backend joystick.Backend) error {
	path, err := settingsPath(r.Settings)
	if err != nil {
		_ = drv.Close()
		return err
	}
	st, err := settings.Load(path)
	if err != nil {
		_ = drv.Close()
		return err
	}
	logger.Info("Loaded mappings", "path", path, "mappers", len(st.Mappings))

	bctx := bridge.NewContext(drv, logger)
	defer func() {
		if err := bctx.Close(); err != nil {
			logger.Warn("Failed to close driver", "error", err)
		}
	}()

	if r.Mouse {
		if reader, err := mouse.NewReader(); err != nil {
			logger.Debug("Mouse input disabled", "error", err)
		} else {
			dev := mouse.NewDevice(reader, logger)
			bctx.Inputs.Add(dev)
			dev.Start(ctx)
		}
	}

	mappers, err := st.Mappers()
	if err != nil {
		return err
	}

	var hub *monitor.Hub
	if r.MonitorAddr != "" {
		hub = monitor.NewHub(logger)
		defer hub.Close()
	}
	for _, m := range mappers {
		c := bctx.NewController(m)
		if hub != nil {
			hub.Watch(c)
		}
	}

	if hub != nil {
		ln, err := net.Listen("tcp", r.MonitorAddr)
		if err != nil {
			return err
		}
		srv := &http.Server{Handler: hub.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Monitor server failed", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
		logger.Info("Monitor listening", "addr", ln.Addr().String())
	}

	discovery := bridge.NewDiscovery(backend, bctx, logger)
	if r.DiscoveryInterval > 0 {
		discovery.Interval = r.DiscoveryInterval
	}
	discovery.Configure = func(dev *joystick.Device) {
		dev.SetForceFeedbackEnabled(st.Input(dev.UniqueID()).ForceFeedback)
	}

	bctx.Controllers.Rebind(bctx.Inputs.List())
	bctx.AutoStart()

	done := make(chan struct{})
	if st.DisableAutoRefresh {
		if err := discovery.Refresh(ctx); err != nil {
			logger.Error("Device discovery failed", "error", err)
		}
		close(done)
	} else {
		go func() {
			defer close(done)
			discovery.Run(ctx)
		}()
	}
	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		bridge.NewRefresher(bctx.Inputs, r.RefreshInterval, logger).Run(ctx)
	}()

	logger.Info("Bridge running", "driver", drv.Name(), "controllers", len(mappers))
	<-ctx.Done()
	<-done
	<-refreshed
	logger.Info("Shutting down")
	return nil
}
