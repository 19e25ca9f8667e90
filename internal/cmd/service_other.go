//go:build !linux

package cmd

import (
	"errors"
	"log/slog"
)

var errServiceUnsupported = errors.New("service management is only supported on Linux")

func install(_ []string, _ *slog.Logger) error { return errServiceUnsupported }

func uninstall(_ *slog.Logger) error { return errServiceUnsupported }
