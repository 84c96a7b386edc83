package busclient

import (
	"errors"
	"fmt"

	"github.com/Alia5/psxpad/device/dualshock2"
)

var (
	// ErrNoController means nothing answered the controller address.
	ErrNoController = errors.New("busclient: no controller")
	// ErrRejected means the controller answered its address but dropped the
	// command before its body completed.
	ErrRejected = errors.New("busclient: command rejected")
)

const headerSize = 3

// PollResult is the report a controller returns to a poll or escape.
type PollResult struct {
	Mode        dualshock2.Mode
	Buttons     [2]uint8
	RX, RY      uint8
	LX, LY      uint8
	Pressure    [dualshock2.PressureCount]uint8
	HasSticks   bool
	HasPressure bool
}

// ParsePollResult decodes a full poll reply including the address, mode
// and padding bytes.
func ParsePollResult(reply []byte) (PollResult, error) {
	var r PollResult
	if len(reply) < 2 {
		return r, ErrNoController
	}
	if len(reply) < headerSize || reply[2] != dualshock2.PaddingByte {
		return r, fmt.Errorf("%w: mode 0x%02x", ErrRejected, reply[1])
	}
	r.Mode = dualshock2.Mode(reply[1])
	body := reply[headerSize:]
	if len(body) < 2 {
		return r, fmt.Errorf("%w: %d body bytes", ErrRejected, len(body))
	}
	r.Buttons[0], r.Buttons[1] = body[0], body[1]
	if r.Mode == dualshock2.ModeDigital {
		return r, nil
	}
	if len(body) < 6 {
		return r, fmt.Errorf("%w: %d body bytes", ErrRejected, len(body))
	}
	r.RX, r.RY, r.LX, r.LY = body[2], body[3], body[4], body[5]
	r.HasSticks = true
	if r.Mode != dualshock2.ModePressure {
		return r, nil
	}
	if len(body) < 6+dualshock2.PressureCount {
		return r, fmt.Errorf("%w: %d body bytes", ErrRejected, len(body))
	}
	copy(r.Pressure[:], body[6:])
	r.HasPressure = true
	return r, nil
}

// Pressed reports whether any of the active-low bits in mask are held.
// hi selects the second button byte.
func (r *PollResult) Pressed(hi bool, mask uint8) bool {
	b := r.Buttons[0]
	if hi {
		b = r.Buttons[1]
	}
	return b&mask != mask
}

// bodyLen is how many bytes follow the padding for a report in mode m.
func bodyLen(m dualshock2.Mode) int {
	switch m {
	case dualshock2.ModeDigital, dualshock2.ModeAnalog, dualshock2.ModeConfig:
		return dualshock2.PollParamCount
	default:
		return 6 + dualshock2.PressureCount
	}
}
