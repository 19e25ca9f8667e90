package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Alia5/padbridge/driver"
	"github.com/Alia5/padbridge/driver/viiper"
	"github.com/Alia5/padbridge/driver/vigem"
	"github.com/Alia5/padbridge/input/joystick"
	"github.com/Alia5/padbridge/internal/configpaths"
	"github.com/Alia5/padbridge/internal/log"

	"golang.org/x/term"
)

// JoystickBackendFactory opens the platform joystick backend. It is bound by
// main so that commands stay free of native library imports.
type JoystickBackendFactory func(logger *slog.Logger) (joystick.Backend, error)

const defaultSettingsName = "mappings"

// settingsPath resolves the mappings file, defaulting to the config dir.
func settingsPath(p string) (string, error) {
	if p != "" {
		return p, nil
	}
	return configpaths.DefaultNamedConfigPath(defaultSettingsName, "json")
}

func openBackend(factory JoystickBackendFactory, logger *slog.Logger) (joystick.Backend, func(), error) {
	if factory == nil {
		return nil, nil, errors.New("no joystick backend available")
	}
	backend, err := factory(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open joystick backend: %w", err)
	}
	closer := func() {}
	if c, ok := backend.(io.Closer); ok {
		closer = func() { _ = c.Close() }
	}
	return backend, closer, nil
}

var readPassword = func() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password prompt requires a terminal")
	}
	_, _ = fmt.Fprint(os.Stderr, "VIIPER password: ")
	pwd, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pwd)), nil
}

// openDriver selects the virtual controller driver. "auto" prefers ViGEmBus
// and falls back to VIIPER when it is unavailable.
func openDriver(name string, cfg viiper.Config, logger *slog.Logger, raw log.RawLogger) (driver.Driver, error) {
	if cfg.Password == "-" {
		pwd, err := readPassword()
		if err != nil {
			return nil, fmt.Errorf("read VIIPER password: %w", err)
		}
		cfg.Password = pwd
	}
	newViiper := func() (driver.Driver, error) {
		d, err := viiper.New(cfg, logger, raw)
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	switch name {
	case "viiper":
		return newViiper()
	case "vigem":
		return vigem.New(logger, raw), nil
	case "", "auto":
		vg := vigem.New(logger, raw)
		err := vg.Available()
		if err == nil {
			return vg, nil
		}
		logger.Debug("ViGEmBus unavailable, using VIIPER", "error", err)
		_ = vg.Close()
		return newViiper()
	default:
		return nil, fmt.Errorf("unknown driver %q", name)
	}
}
