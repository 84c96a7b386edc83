package cmd

import "log/slog"

// Install registers psxpad run as a system service.
type Install struct {
	Args []string `arg:"" optional:"" help:"Extra arguments passed to 'psxpad run' by the service"`
}

// Uninstall removes the service created by Install.
type Uninstall struct{}

func (i *Install) Run(logger *slog.Logger) error {
	return install(i.Args, logger)
}

func (u *Uninstall) Run(logger *slog.Logger) error {
	return uninstall(logger)
}
