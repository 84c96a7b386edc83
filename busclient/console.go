package busclient

import (
	"context"
	"fmt"

	"github.com/Alia5/psxpad/device/dualshock2"
)

// MotorMapRumble routes poll parameter 0 to the small motor and parameter 1
// to the large one.
var MotorMapRumble = [dualshock2.MotorMapSlots]uint8{
	dualshock2.MotorSlotSmall, dualshock2.MotorSlotLarge,
	dualshock2.MotorMapUnused, dualshock2.MotorMapUnused,
	dualshock2.MotorMapUnused, dualshock2.MotorMapUnused,
}

// Console issues controller commands over a Transferer. It remembers the
// last mode byte it saw so poll-shaped commands clock the right length.
// A Console is not safe for concurrent use.
type Console struct {
	bus  Transferer
	mode dualshock2.Mode
}

func NewConsole(t Transferer) *Console {
	return &Console{bus: t}
}

// Mode is the mode byte of the last reply, or ModeNone before any.
func (c *Console) Mode() dualshock2.Mode {
	return c.mode
}

func (c *Console) exchange(ctx context.Context, op uint8, body []byte) ([]byte, error) {
	cmd := make([]byte, 0, headerSize+len(body))
	cmd = append(cmd, dualshock2.ControllerAddress, dualshock2.CommandPrefix|op, dualshock2.ZeroByte)
	cmd = append(cmd, body...)
	reply, err := c.bus.Transfer(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if len(reply) < 2 {
		return nil, ErrNoController
	}
	c.mode = dualshock2.Mode(reply[1])
	return reply, nil
}

// command sends a fixed-length body and requires every byte to be acknowledged.
func (c *Console) command(ctx context.Context, op uint8, body []byte) ([]byte, error) {
	reply, err := c.exchange(ctx, op, body)
	if err != nil {
		return nil, err
	}
	if len(reply) < headerSize+len(body) || reply[2] != dualshock2.PaddingByte {
		return nil, fmt.Errorf("%w: opcode 0x%x in mode %s", ErrRejected, op, c.mode)
	}
	return reply[headerSize:], nil
}

// pollParams sizes a poll-shaped body for the last known mode. The first
// poll uses the longest body; the controller stops acknowledging once its
// report is complete.
func (c *Console) pollParams(params ...uint8) []byte {
	body := make([]byte, bodyLen(c.mode))
	copy(body, params)
	return body
}

// Poll reads the pad and drives the motors. small and large land in poll
// parameters 0 and 1, which reach the motors under MotorMapRumble.
func (c *Console) Poll(ctx context.Context, small, large uint8) (PollResult, error) {
	reply, err := c.exchange(ctx, dualshock2.OpPoll, c.pollParams(small, large))
	if err != nil {
		return PollResult{}, err
	}
	return ParsePollResult(reply)
}

// EnterConfig escapes into configuration mode and returns the report that
// came with the escape.
func (c *Console) EnterConfig(ctx context.Context) (PollResult, error) {
	reply, err := c.exchange(ctx, dualshock2.OpEscape, c.pollParams(0x01))
	if err != nil {
		return PollResult{}, err
	}
	return ParsePollResult(reply)
}

// ExitConfig leaves configuration mode. The resulting mode is only known
// after the next report, so the next poll clocks the longest body.
func (c *Console) ExitConfig(ctx context.Context) error {
	if _, err := c.command(ctx, dualshock2.OpEscape, []byte{0x00, 0x5A, 0x5A, 0x5A, 0x5A, 0x5A}); err != nil {
		return err
	}
	c.mode = dualshock2.ModeNone
	return nil
}

// SetMajorMode selects digital or analog for when configuration ends. A
// locked mode ignores toggle requests from the pad.
func (c *Console) SetMajorMode(ctx context.Context, analog, lock bool) error {
	body := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if analog {
		body[0] = 0x01
	}
	if lock {
		body[1] = 0x03
	}
	_, err := c.command(ctx, dualshock2.OpSetMajorMode, body)
	return err
}

// SetMotorMap installs a new motor map and returns the previous one.
func (c *Console) SetMotorMap(ctx context.Context, m [dualshock2.MotorMapSlots]uint8) ([dualshock2.MotorMapSlots]uint8, error) {
	var prev [dualshock2.MotorMapSlots]uint8
	body, err := c.command(ctx, dualshock2.OpSetPollCmdFormat, m[:])
	if err != nil {
		return prev, err
	}
	copy(prev[:], body)
	return prev, nil
}

// SetPollResultFormat sets the response mask; an analog controller
// switches to pressure reports when configuration ends.
func (c *Console) SetPollResultFormat(ctx context.Context, mask [2]uint8) error {
	_, err := c.command(ctx, dualshock2.OpSetPollResultFormat, []byte{mask[0], mask[1], 0x03, 0x00, 0x00, 0x00})
	return err
}

func (c *Console) InitPressure(ctx context.Context) ([6]byte, error) {
	return c.fixed(ctx, dualshock2.OpInitPressure)
}

// GetAvailablePollResults returns the response mask and descriptor.
func (c *Console) GetAvailablePollResults(ctx context.Context) ([6]byte, error) {
	return c.fixed(ctx, dualshock2.OpGetAvailablePollResults)
}

// ReadExtStatus returns the status block; byte 2 is set when the
// configured mode has sticks.
func (c *Console) ReadExtStatus(ctx context.Context) ([6]byte, error) {
	return c.fixed(ctx, dualshock2.OpReadExtStatus)
}

// ReadConst reads entry index of one of the constant tables (OpReadConst1,
// OpReadConst2 or OpReadConst3).
func (c *Console) ReadConst(ctx context.Context, op uint8, index uint8) ([4]byte, error) {
	var out [4]byte
	switch op {
	case dualshock2.OpReadConst1, dualshock2.OpReadConst2, dualshock2.OpReadConst3:
	default:
		return out, fmt.Errorf("busclient: opcode 0x%x is not a constant read", op)
	}
	body, err := c.command(ctx, op, []byte{index, 0x00, 0x00, 0x00, 0x00, 0x00})
	if err != nil {
		return out, err
	}
	copy(out[:], body[2:])
	return out, nil
}

func (c *Console) fixed(ctx context.Context, op uint8) ([6]byte, error) {
	var out [6]byte
	body, err := c.command(ctx, op, []byte{0x5A, 0x5A, 0x5A, 0x5A, 0x5A, 0x5A})
	if err != nil {
		return out, err
	}
	copy(out[:], body)
	return out, nil
}

// Init runs the negotiation a game typically performs at boot: analog mode
// locked, rumble on poll parameters 0 and 1 and, if pressure is set,
// pressure reports.
func (c *Console) Init(ctx context.Context, pressure bool) error {
	if _, err := c.EnterConfig(ctx); err != nil {
		return fmt.Errorf("enter config: %w", err)
	}
	if err := c.SetMajorMode(ctx, true, true); err != nil {
		return fmt.Errorf("set major mode: %w", err)
	}
	if _, err := c.SetMotorMap(ctx, MotorMapRumble); err != nil {
		return fmt.Errorf("set motor map: %w", err)
	}
	if pressure {
		if err := c.SetPollResultFormat(ctx, [2]uint8{0xFF, 0xFF}); err != nil {
			return fmt.Errorf("set poll result format: %w", err)
		}
	}
	if err := c.ExitConfig(ctx); err != nil {
		return fmt.Errorf("exit config: %w", err)
	}
	return nil
}
