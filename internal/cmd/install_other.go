//go:build !linux

package cmd

import (
	"errors"
	"log/slog"
)

var errNoServiceManager = errors.New("service install is only supported with systemd")

func install([]string, *slog.Logger) error { return errNoServiceManager }

func uninstall(*slog.Logger) error { return errNoServiceManager }
