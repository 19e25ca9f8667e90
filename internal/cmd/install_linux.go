//go:build linux

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const serviceName = "padbridge.service"

// servicePath returns the unit path in the user's systemd directory.
func servicePath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "systemd", "user", serviceName), nil
}

func install(args []string, logger *slog.Logger) error {
	exePath, err := os.Executable()
	if err != nil {
		return err
	}
	if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
		exePath = resolved
	}
	unitPath, err := servicePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(unitPath, []byte(systemdUnitContent(exePath, args)), 0o644); err != nil {
		return err
	}

	steps := [][]string{
		{"daemon-reload"},
		{"enable", serviceName},
		{"restart", serviceName},
	}
	for _, step := range steps {
		if err := runSystemctl(step...); err != nil {
			return err
		}
	}

	logger.Info("padbridge user service installed", "path", unitPath, "exe", exePath)
	return nil
}

func uninstall(logger *slog.Logger) error {
	unitPath, err := servicePath()
	if err != nil {
		return err
	}
	var errs []error
	if err := runSystemctl("stop", serviceName); err != nil {
		errs = append(errs, err)
	}
	if err := runSystemctl("disable", serviceName); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := runSystemctl("daemon-reload"); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("padbridge user service removed", "path", unitPath)
	return nil
}

func systemdUnitContent(exePath string, args []string) string {
	cmdline := strconv.Quote(exePath) + " run"
	for _, a := range args {
		cmdline += " " + strconv.Quote(a)
	}
	return fmt.Sprintf(`[Unit]
Description=padbridge input bridge
After=graphical-session.target

[Service]
Type=simple
ExecStart=%s
WorkingDirectory=%s
Restart=on-failure
RestartSec=2

[Install]
WantedBy=default.target
`, cmdline, filepath.Dir(exePath))
}

func runSystemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl --user %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}
