package dualshock2

import "fmt"

// Mode is the controller mode identifier, also the byte the controller
// shifts out while receiving a command.
type Mode uint8

const (
	ModeNone     Mode = 0x00
	ModeDigital  Mode = 0x41
	ModeAnalog   Mode = 0x73
	ModePressure Mode = 0x79
	ModeConfig   Mode = 0xF3
)

// modeExtended marks the analog modes.
const modeExtended = 0x10

func (m Mode) Extended() bool {
	return m&modeExtended != 0
}

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeDigital:
		return "digital"
	case ModeAnalog:
		return "analog"
	case ModePressure:
		return "pressure"
	case ModeConfig:
		return "config"
	default:
		return fmt.Sprintf("mode(0x%02x)", uint8(m))
	}
}

// Registers is the complete emulated controller state. It is owned by the
// device loop and never shared.
type Registers struct {
	// ControlMode is the mode reported on the bus.
	ControlMode Mode
	// ConfigMode is the mode saved on entering Config and restored on exit. Never ModeConfig.
	ConfigMode Mode
	ModeLock   bool
	// ModeRequest is a toggle deferred until Config is exited, ModeNone when absent.
	ModeRequest Mode

	Buttons  [2]uint8
	Sticks   [4]uint8
	Pressure [PressureCount]uint8

	// Motors holds small then large motor intensity.
	Motors       [2]uint8
	MotorMap     [MotorMapSlots]uint8
	ResponseMask [2]uint8

	Active    bool
	Connected bool
}

// DefaultRegisters returns the power-on register state.
func DefaultRegisters() Registers {
	r := Registers{
		ControlMode:  ModeDigital,
		ConfigMode:   ModeDigital,
		ModeRequest:  ModeNone,
		Buttons:      [2]uint8{ReleasedButtons, ReleasedButtons},
		Sticks:       [4]uint8{NeutralStick, NeutralStick, NeutralStick, NeutralStick},
		ResponseMask: [2]uint8{0xFF, 0xFF},
	}
	for i := range r.MotorMap {
		r.MotorMap[i] = MotorMapUnused
	}
	return r
}

// Reset restores every register to its default except Connected.
func (r *Registers) Reset() {
	connected := r.Connected
	*r = DefaultRegisters()
	r.Connected = connected
}

// Disconnect restores every register to its default, Connected included.
func (r *Registers) Disconnect() {
	*r = DefaultRegisters()
}

// ModeLED reports the mode indicator: off only while the visible mode is
// digital. A Config session reports the mode it will return to.
func (r *Registers) ModeLED() bool {
	if r.ControlMode == ModeDigital {
		return false
	}
	if r.ControlMode == ModeConfig && r.ConfigMode == ModeDigital {
		return false
	}
	return true
}

// SmallMotor returns the small motor intensity.
func (r *Registers) SmallMotor() uint8 { return r.Motors[0] }

// LargeMotor returns the large motor intensity.
func (r *Registers) LargeMotor() uint8 { return r.Motors[1] }
