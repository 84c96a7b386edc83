package dualshock2

import "time"

// Bus framing.
const (
	ControllerAddress = 0x01
	CommandPrefix     = 0x40
	CommandPrefixMask = 0xF0
	OpcodeMask        = 0x0F

	IdleByte    = 0xFF
	PaddingByte = 0x5A
	ZeroByte    = 0x00
)

// Opcodes (low nibble of the command byte).
const (
	OpInitPressure            = 0x0
	OpGetAvailablePollResults = 0x1
	OpPoll                    = 0x2
	OpEscape                  = 0x3
	OpSetMajorMode            = 0x4
	OpReadExtStatus           = 0x5
	OpReadConst1              = 0x6
	OpReadConst2              = 0x7
	OpReadConst3              = 0xC
	OpSetPollCmdFormat        = 0xD
	OpSetPollResultFormat     = 0xF
)

// Host link frame.
const (
	FrameStart      = 0x5A
	FrameDataSize   = 18
	FrameSize       = FrameDataSize + 2
	FeedbackSize    = 4
	FeedbackStart   = 0x5A
	TermNormal      = 0x55
	TermToggle      = 0xAA
	TermDisconnect  = 0x5A
	FeedbackLEDOff  = 0x55
	FeedbackLEDOn   = 0xAA
	MotorMapUnused  = 0xFF
	MotorSlotSmall  = 0x00
	MotorSlotLarge  = 0x01
	MotorMapSlots   = 6
	PollParamCount  = 6
	NeutralStick    = 0x80
	ReleasedButtons = 0xFF
)

// Digital buttons, active-low. ButtonsLow lives in Buttons[0], ButtonsHigh in Buttons[1].
const (
	ButtonSelect uint8 = 0x01
	ButtonL3     uint8 = 0x02
	ButtonR3     uint8 = 0x04
	ButtonStart  uint8 = 0x08
	ButtonUp     uint8 = 0x10
	ButtonRight  uint8 = 0x20
	ButtonDown   uint8 = 0x40
	ButtonLeft   uint8 = 0x80
)

const (
	ButtonL2       uint8 = 0x01
	ButtonR2       uint8 = 0x02
	ButtonL1       uint8 = 0x04
	ButtonR1       uint8 = 0x08
	ButtonTriangle uint8 = 0x10
	ButtonCircle   uint8 = 0x20
	ButtonCross    uint8 = 0x40
	ButtonSquare   uint8 = 0x80
)

// Stick indices into Registers.Sticks.
const (
	StickRX = iota
	StickRY
	StickLX
	StickLY
)

// Pressure indices into Registers.Pressure.
const (
	PressureRight = iota
	PressureLeft
	PressureUp
	PressureDown
	PressureTriangle
	PressureCircle
	PressureCross
	PressureSquare
	PressureL1
	PressureR1
	PressureL2
	PressureR2
	PressureCount
)

const (
	DefaultIdleTimeout       = time.Second
	DefaultDisconnectTimeout = time.Second
	DefaultPollInterval      = 10 * time.Millisecond
	DefaultSelectPoll        = 100 * time.Microsecond
)
