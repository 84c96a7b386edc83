package dualshock2

import (
	"errors"
	"io"
)

var ErrBadFeedback = errors.New("dualshock2: malformed feedback frame")

// InputState is the payload of a host link frame. Buttons are active-low.
type InputState struct {
	Buttons        [2]uint8
	RX, RY, LX, LY uint8
	Pressure       [PressureCount]uint8
}

// NeutralInput returns an input with every button released and both sticks centred.
func NeutralInput() InputState {
	return InputState{
		Buttons: [2]uint8{ReleasedButtons, ReleasedButtons},
		RX:      NeutralStick,
		RY:      NeutralStick,
		LX:      NeutralStick,
		LY:      NeutralStick,
	}
}

func (s *InputState) MarshalBinary() ([]byte, error) {
	b := make([]byte, FrameDataSize)
	s.put(b)
	return b, nil
}

func (s *InputState) UnmarshalBinary(data []byte) error {
	if len(data) < FrameDataSize {
		return io.ErrUnexpectedEOF
	}
	s.Buttons[0] = data[0]
	s.Buttons[1] = data[1]
	s.RX = data[2]
	s.RY = data[3]
	s.LX = data[4]
	s.LY = data[5]
	copy(s.Pressure[:], data[6:FrameDataSize])
	return nil
}

func (s *InputState) put(b []byte) {
	b[0] = s.Buttons[0]
	b[1] = s.Buttons[1]
	b[2] = s.RX
	b[3] = s.RY
	b[4] = s.LX
	b[5] = s.LY
	copy(b[6:FrameDataSize], s.Pressure[:])
}

// Press clears the given active-low bits. hi selects Buttons[1].
func (s *InputState) Press(hi bool, mask uint8) {
	if hi {
		s.Buttons[1] &^= mask
		return
	}
	s.Buttons[0] &^= mask
}

// EncodeFrame builds a complete host link frame. terminator is TermNormal or TermToggle.
func EncodeFrame(s *InputState, terminator byte) []byte {
	b := make([]byte, FrameSize)
	b[0] = FrameStart
	s.put(b[1 : 1+FrameDataSize])
	b[FrameSize-1] = terminator
	return b
}

// DisconnectFrame builds the frame that tells the controller its host went away.
func DisconnectFrame() []byte {
	b := make([]byte, FrameSize)
	b[0] = FrameStart
	b[FrameSize-1] = TermDisconnect
	return b
}

// OutputState is the feedback returned for every accepted host link frame.
type OutputState struct {
	SmallMotor uint8
	LargeMotor uint8
	ModeLED    bool
}

func (o *OutputState) MarshalBinary() ([]byte, error) {
	var b [FeedbackSize]byte
	o.put(&b)
	return b[:], nil
}

func (o *OutputState) UnmarshalBinary(data []byte) error {
	if len(data) < FeedbackSize {
		return io.ErrUnexpectedEOF
	}
	if data[0] != FeedbackStart {
		return ErrBadFeedback
	}
	switch data[3] {
	case FeedbackLEDOn:
		o.ModeLED = true
	case FeedbackLEDOff:
		o.ModeLED = false
	default:
		return ErrBadFeedback
	}
	o.SmallMotor = data[1]
	o.LargeMotor = data[2]
	return nil
}

func (o *OutputState) put(b *[FeedbackSize]byte) {
	b[0] = FeedbackStart
	b[1] = o.SmallMotor
	b[2] = o.LargeMotor
	b[3] = FeedbackLEDOff
	if o.ModeLED {
		b[3] = FeedbackLEDOn
	}
}
