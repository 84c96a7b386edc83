package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Alia5/psxpad/device/dualshock2"
	"github.com/Alia5/psxpad/internal/auth"
	"github.com/Alia5/psxpad/internal/configpaths"
	"github.com/Alia5/psxpad/internal/link"
	"github.com/Alia5/psxpad/internal/log"
	"github.com/Alia5/psxpad/internal/rt"
	"github.com/Alia5/psxpad/internal/server/bus"
	"github.com/Alia5/psxpad/virtualbus"
)

const keyFileName = "psxpad.key.txt"

type DeviceConfig struct {
	IdleTimeout       time.Duration `help:"Reset the controller after this long without a bus transfer" default:"1s" env:"PSXPAD_DEVICE_IDLE_TIMEOUT"`
	DisconnectTimeout time.Duration `help:"Disconnect the controller after this long without a host link frame" default:"1s" env:"PSXPAD_DEVICE_DISCONNECT_TIMEOUT"`
	PollInterval      time.Duration `help:"How often the idle loop checks the timeouts" default:"10ms" env:"PSXPAD_DEVICE_POLL_INTERVAL"`
}

type Run struct {
	Link              link.Config      `embed:"" prefix:"link."`
	Bus               bus.ServerConfig `embed:"" prefix:"bus."`
	Device            DeviceConfig     `embed:"" prefix:"device."`
	RT                rt.Config        `embed:"" prefix:"rt."`
	Auth              bool             `help:"Require authenticated, encrypted sessions on the bus server and the tcp link" env:"PSXPAD_AUTH"`
	KeyFile           string           `help:"Password file used with --auth (created when missing, defaults to the config dir)" env:"PSXPAD_KEY_FILE"`
	ConnectionTimeout time.Duration    `help:"Handshake timeout for bus masters" default:"5s" env:"PSXPAD_CONNECTION_TIMEOUT"`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Start(ctx, logger, rawLogger)
}

// Start runs the emulator until ctx is cancelled, the host link closes or
// the bus server fails.
func (r *Run) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var key auth.Key
	if r.Auth {
		password, err := r.loadPassword(logger)
		if err != nil {
			return err
		}
		if key, err = auth.KeyFromPassword(password); err != nil {
			return fmt.Errorf("derive key: %w", err)
		}
	}
	r.Bus.ConnectionTimeout = r.ConnectionTimeout

	stream, err := link.Open(ctx, r.Link, key, logger, log.Channel(rawLogger, "link"))
	if err != nil {
		return fmt.Errorf("open host link: %w", err)
	}
	defer stream.Close()

	vb := virtualbus.New(virtualbus.Config{
		AckTimeout:    r.Bus.AckTimeout,
		SelectTimeout: r.Bus.SelectTimeout,
	})
	defer vb.Close()

	srv := bus.New(r.Bus, vb, key, logger, log.Channel(rawLogger, "bus"))
	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-srvErrCh:
		return fmt.Errorf("bus server: %w", err)
	case <-srv.Ready():
	}
	defer srv.Close()

	d := dualshock2.New(&dualshock2.Options{
		IdleTimeout:       r.Device.IdleTimeout,
		DisconnectTimeout: r.Device.DisconnectTimeout,
		PollInterval:      r.Device.PollInterval,
	})
	d.SetOutputCallback(feedbackLogger(logger))
	d.SetConnectionCallback(connectionLogger(logger))

	devErrCh := make(chan error, 1)
	go func() {
		if r.RT.Enabled() {
			if err := rt.Apply(r.RT); err != nil {
				logger.Warn("Real-time hints not fully applied", "error", err)
			}
		}
		devErrCh <- d.Run(ctx, vb, stream)
	}()
	logger.Info("Controller running", "link", r.Link.Type, "bus", srv.Addr().String())

	select {
	case err := <-devErrCh:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Info("Shutting down")
			return nil
		}
		return err
	case err := <-srvErrCh:
		return fmt.Errorf("bus server: %w", err)
	}
}

func (r *Run) loadPassword(logger *slog.Logger) (string, error) {
	keyFilePath := r.KeyFile
	if keyFilePath == "" {
		dir, err := configpaths.DefaultConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve key file path: %w", err)
		}
		keyFilePath = filepath.Join(dir, keyFileName)
	}
	if pwd, err := os.ReadFile(keyFilePath); err == nil {
		return strings.TrimSpace(string(pwd)), nil
	}

	pwd := auth.NewPassword()
	if err := os.MkdirAll(filepath.Dir(keyFilePath), 0o700); err != nil {
		return "", fmt.Errorf("failed to create key file dir: %w", err)
	}
	if err := os.WriteFile(keyFilePath, []byte(pwd), 0o600); err != nil {
		return "", fmt.Errorf("failed to write key file: %w", err)
	}
	logger.Info("Generated password", "path", keyFilePath)
	logger.Info("-------------------------------------")
	logger.Info(pwd)
	logger.Info("-------------------------------------")
	logger.Info("Masters and companions need this password; edit the file to change it")
	return pwd, nil
}

// feedbackLogger logs feedback when it changes. It runs on the device loop.
func feedbackLogger(logger *slog.Logger) func(dualshock2.OutputState) {
	var last dualshock2.OutputState
	first := true
	return func(o dualshock2.OutputState) {
		if !first && o == last {
			return
		}
		first = false
		last = o
		logger.Debug("Feedback", "small", o.SmallMotor, "large", o.LargeMotor, "led", o.ModeLED)
	}
}

func connectionLogger(logger *slog.Logger) func(bool) {
	return func(connected bool) {
		if connected {
			logger.Info("Host link companion connected")
			return
		}
		logger.Info("Host link companion disconnected")
	}
}
