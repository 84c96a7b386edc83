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

const (
	serviceName = "psxpad.service"
	servicePath = "/etc/systemd/system/psxpad.service"
)

func install(args []string, logger *slog.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if exe, err = filepath.EvalSymlinks(exe); err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	if err := os.WriteFile(servicePath, []byte(systemdUnit(exe, args)), 0o644); err != nil {
		return err
	}
	for _, step := range [][]string{
		{"daemon-reload"},
		{"enable", serviceName},
		{"restart", serviceName},
	} {
		if err := systemctl(step...); err != nil {
			return err
		}
	}

	logger.Info("psxpad service installed", "path", servicePath, "exe", exe)
	return nil
}

func uninstall(logger *slog.Logger) error {
	var errs []error
	for _, step := range [][]string{{"stop", serviceName}, {"disable", serviceName}} {
		if err := systemctl(step...); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(servicePath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if err := systemctl("daemon-reload"); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("psxpad service removed", "path", servicePath)
	return nil
}

// systemdUnit grants the capabilities the rt.* options need so the service
// does not have to run as root.
func systemdUnit(exe string, args []string) string {
	cmdline := []string{strconv.Quote(exe), "run"}
	for _, a := range args {
		cmdline = append(cmdline, strconv.Quote(a))
	}
	return fmt.Sprintf(`[Unit]
Description=psxpad DualShock 2 emulator
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
WorkingDirectory=%s
Restart=on-failure
AmbientCapabilities=CAP_SYS_NICE CAP_IPC_LOCK
LimitMEMLOCK=infinity
SupplementaryGroups=dialout

[Install]
WantedBy=multi-user.target
`, strings.Join(cmdline, " "), filepath.Dir(exe))
}

func systemctl(args ...string) error {
	out, err := exec.Command("systemctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
