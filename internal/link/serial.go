package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/Alia5/psxpad/internal/log"
)

// OpenSerial opens the host link on a serial device, 8N1 raw. The returned
// stream's byte channel closes when the device goes away.
func OpenSerial(ctx context.Context, cfg Config, logger *slog.Logger, rawLogger log.RawLogger) (*Stream, error) {
	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PortNotFound {
			return nil, fmt.Errorf("open %s: no such serial port (see `psxpad ports`): %w", cfg.Device, err)
		}
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	if err := port.ResetInputBuffer(); err != nil {
		logger.Warn("Failed to flush serial input", "error", err)
	}

	s := newStream(ctx, cfg.QueueSize, logger, rawLogger)
	s.addCloser(port)
	s.setWriter(port)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.rx)
		err := s.pump(port)
		if s.ctx.Err() == nil {
			logger.Error("Host link serial read failed", "device", cfg.Device, "error", err)
		}
	}()

	logger.Info("Host link open", "device", cfg.Device, "baud", cfg.Baud)
	return s, nil
}

// PortInfo describes a serial port available for the host link.
type PortInfo struct {
	Name         string
	USB          bool
	VID          string
	PID          string
	SerialNumber string
}

// ListPorts enumerates serial ports.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, lerr := serial.GetPortsList()
		if lerr != nil {
			return nil, errors.Join(err, lerr)
		}
		out := make([]PortInfo, 0, len(names))
		for _, n := range names {
			out = append(out, PortInfo{Name: n})
		}
		return out, nil
	}
	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:         d.Name,
			USB:          d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	return out, nil
}
