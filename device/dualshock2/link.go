package dualshock2

import "time"

// frameDecoder captures host link frames one byte at a time.
//
// A frame whose terminator is not recognised is discarded and the capture
// window slides to the next start marker inside it, so a start marker at any
// offset can begin a frame while 0x5A stays usable as a data value.
type frameDecoder struct {
	buf [FrameSize]byte
	n   int
}

// feed adds b to the capture and reports whether a frame with a recognised
// terminator is complete. The frame stays in buf until the next call.
func (f *frameDecoder) feed(b byte) bool {
	if f.n == 0 && b != FrameStart {
		return false
	}
	f.buf[f.n] = b
	f.n++
	if f.n < FrameSize {
		return false
	}
	switch f.buf[FrameSize-1] {
	case TermNormal, TermToggle, TermDisconnect:
		f.n = 0
		return true
	}
	f.resync()
	return false
}

func (f *frameDecoder) resync() {
	for i := 1; i < FrameSize; i++ {
		if f.buf[i] == FrameStart {
			f.n = copy(f.buf[:], f.buf[i:FrameSize])
			return
		}
	}
	f.n = 0
}

// FeedLink consumes one host link byte. When the byte completes a frame the
// frame is applied and the feedback to send back is returned; otherwise nil.
// The returned slice is only valid until the next call.
func (d *DualShock2) FeedLink(b byte, now time.Time) []byte {
	if !d.frames.feed(b) {
		return nil
	}
	frame := &d.frames.buf
	r := &d.regs
	wasConnected := r.Connected

	switch frame[FrameSize-1] {
	case TermDisconnect:
		r.Disconnect()
	default:
		r.Buttons[0] = frame[1]
		r.Buttons[1] = frame[2]
		copy(r.Sticks[:], frame[3:7])
		copy(r.Pressure[:], frame[7:FrameSize-1])
		r.Connected = true
		d.super.frameSeen(now)

		if frame[FrameSize-1] == TermToggle && !r.ModeLock {
			requestToggle(r)
		}
	}

	out := d.Feedback()
	out.put(&d.feedback)
	d.notify()
	if r.Connected != wasConnected {
		d.connectionChanged()
	}
	return d.feedback[:]
}

// Feedback returns the feedback the current registers would produce.
func (d *DualShock2) Feedback() OutputState {
	return OutputState{
		SmallMotor: d.regs.SmallMotor(),
		LargeMotor: d.regs.LargeMotor(),
		ModeLED:    d.regs.ModeLED(),
	}
}

func (d *DualShock2) connectionChanged() {
	if d.connFunc != nil {
		d.connFunc(d.regs.Connected)
	}
}

func (d *DualShock2) notify() {
	if d.outputFunc != nil {
		d.outputFunc(d.Feedback())
	}
}
