package dualshock2

import "github.com/Alia5/psxpad/bus"

// transfer clocks the body of one session. The first failed exchange is
// latched and every later exchange becomes a no-op, so a handler can run its
// whole byte sequence and check ok() once before committing.
type transfer struct {
	port bus.Port
	err  error
}

// next raises the acknowledge for the previous byte and exchanges tx.
func (t *transfer) next(tx byte) byte {
	if t.err != nil {
		return 0
	}
	t.port.Ack()
	rx, err := t.port.Exchange(tx)
	if err != nil {
		t.err = err
		return 0
	}
	return rx
}

func (t *transfer) send(p []byte) {
	for _, b := range p {
		t.next(b)
	}
}

func (t *transfer) ok() bool {
	return t.err == nil
}

// Service handles sessions until the select line stays released. A master
// may release and assert select again before Service observes it; the
// deselect then surfaces as a failed address exchange, which also ends the
// address latch.
func (d *DualShock2) Service(port bus.Port) {
	if d.indicator != nil && !d.heartbeat {
		d.heartbeat = true
		d.indicator.Set(true)
	}
	for port.Selected() {
		if d.session(port) {
			d.super.busSeen(d.clock())
		}
	}
	d.ignore = false
}

// session runs one address, command, padding, body sequence and reports
// whether the controller accepted the address.
func (d *DualShock2) session(port bus.Port) bool {
	r := &d.regs

	addr, err := port.Exchange(IdleByte)
	if err != nil {
		d.ignore = false
		return false
	}
	if addr != ControllerAddress || d.ignore || !r.Connected {
		d.ignore = true
		return false
	}
	r.Active = true

	t := transfer{port: port}
	cmd := t.next(byte(r.ControlMode))
	if !t.ok() || cmd&CommandPrefixMask != CommandPrefix {
		return true
	}
	op := cmd & OpcodeMask
	if r.ControlMode != ModeConfig && op != OpPoll && op != OpEscape {
		return true
	}

	t.next(PaddingByte)
	if !t.ok() {
		return true
	}

	if h := commandTable[op]; h != nil {
		h(d, &t)
	}
	return true
}
