package cmd

import "log/slog"

type Service struct {
	Install   ServiceInstall   `cmd:"" help:"Install and start padbridge as a systemd user service"`
	Uninstall ServiceUninstall `cmd:"" help:"Stop and remove the systemd user service"`
}

type ServiceInstall struct {
	Args []string `arg:"" optional:"" help:"Extra arguments passed to 'padbridge run'"`
}

// Run is called by Kong when the service install command is executed.
func (s *ServiceInstall) Run(logger *slog.Logger) error {
	return install(s.Args, logger)
}

type ServiceUninstall struct{}

// Run is called by Kong when the service uninstall command is executed.
func (s *ServiceUninstall) Run(logger *slog.Logger) error {
	return uninstall(logger)
}
