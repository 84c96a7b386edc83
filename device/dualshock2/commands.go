package dualshock2

type handler func(d *DualShock2, t *transfer)

// commandTable maps an opcode to its body. Nil entries abort the session.
var commandTable = [16]handler{
	OpInitPressure:            (*DualShock2).initPressure,
	OpGetAvailablePollResults: (*DualShock2).getAvailablePollResults,
	OpPoll:                    (*DualShock2).poll,
	OpEscape:                  (*DualShock2).escape,
	OpSetMajorMode:            (*DualShock2).setMajorMode,
	OpReadExtStatus:           (*DualShock2).readExtStatus,
	OpReadConst1:              readConst(&const1Table),
	OpReadConst2:              readConst(&const2Table),
	OpReadConst3:              readConst(&const3Table),
	OpSetPollCmdFormat:        (*DualShock2).setPollCmdFormat,
	OpSetPollResultFormat:     (*DualShock2).setPollResultFormat,
}

var (
	initPressureReply  = [6]byte{0x00, 0x00, 0x02, 0x00, 0x00, 0x5A}
	pollResultsDigital = [4]byte{0x00, 0x00, 0x00, 0x00}
	pollResultsAnalog  = [4]byte{0x03, 0x00, 0x00, 0x5A}
	pollResultTail     = [4]byte{0x00, 0x00, 0x00, 0x5A}
	zeroPad            = [5]byte{}

	const1Table = [2][4]byte{{0x01, 0x02, 0x00, 0x0A}, {0x01, 0x01, 0x01, 0x14}}
	const2Table = [2][4]byte{{0x02, 0x00, 0x01, 0x00}, {0x02, 0x00, 0x01, 0x00}}
	const3Table = [2][4]byte{{0x00, 0x04, 0x00, 0x00}, {0x00, 0x07, 0x00, 0x00}}
)

func (d *DualShock2) initPressure(t *transfer) {
	t.send(initPressureReply[:])
}

func (d *DualShock2) getAvailablePollResults(t *transfer) {
	r := &d.regs
	mask, desc := uint8(0x00), &pollResultsDigital
	if r.ConfigMode.Extended() {
		mask, desc = 0xFF, &pollResultsAnalog
	}
	t.next(r.ResponseMask[0] & mask)
	t.next(r.ResponseMask[1] & mask)
	t.send(desc[:])
}

// pollBody shifts out the report for the current mode and returns the six
// parameter bytes the console sent alongside. Digital mode only carries two.
func (d *DualShock2) pollBody(t *transfer) [PollParamCount]uint8 {
	r := &d.regs
	var params [PollParamCount]uint8

	if r.ControlMode == ModeDigital {
		params[0] = t.next(r.Buttons[0] | ButtonL3 | ButtonR3)
		params[1] = t.next(r.Buttons[1])
		t.send(zeroPad[:4])
		return params
	}

	params[0] = t.next(r.Buttons[0])
	params[1] = t.next(r.Buttons[1])
	for i, v := range r.Sticks {
		params[2+i] = t.next(v)
	}
	if r.ControlMode == ModePressure {
		t.send(r.Pressure[:])
	}
	return params
}

func (d *DualShock2) poll(t *transfer) {
	params := d.pollBody(t)
	if !t.ok() {
		return
	}
	r := &d.regs
	for i, slot := range r.MotorMap {
		switch slot {
		case MotorSlotSmall:
			r.Motors[0] = params[i]
		case MotorSlotLarge:
			r.Motors[1] = params[i]
		}
	}
}

func (d *DualShock2) escape(t *transfer) {
	r := &d.regs
	if r.ControlMode == ModeConfig {
		p := t.next(ZeroByte)
		t.send(zeroPad[:])
		if t.ok() && p&0x01 == 0 {
			exitConfig(r)
		}
		return
	}

	params := d.pollBody(t)
	if t.ok() && params[0]&0x01 != 0 {
		enterConfig(r)
	}
}

func (d *DualShock2) setMajorMode(t *transfer) {
	mode := t.next(ZeroByte)
	lock := t.next(ZeroByte)
	t.send(zeroPad[:4])
	if !t.ok() {
		return
	}
	r := &d.regs
	r.ModeLock = lock == 0x03
	if mode&0x01 != 0 {
		r.ConfigMode = ModeAnalog
	} else {
		r.ConfigMode = ModeDigital
	}
}

func (d *DualShock2) readExtStatus(t *transfer) {
	var ext uint8
	if d.regs.ConfigMode.Extended() {
		ext = 0x01
	}
	reply := [6]byte{0x03, 0x02, ext, 0x02, 0x01, 0x00}
	t.send(reply[:])
}

func readConst(table *[2][4]byte) handler {
	return func(_ *DualShock2, t *transfer) {
		p := t.next(ZeroByte)
		t.next(ZeroByte)
		t.send(table[p&0x01][:])
	}
}

func (d *DualShock2) setPollCmdFormat(t *transfer) {
	r := &d.regs
	var m [MotorMapSlots]uint8
	for i := range m {
		m[i] = t.next(r.MotorMap[i])
	}
	if t.ok() {
		r.MotorMap = m
	}
}

func (d *DualShock2) setPollResultFormat(t *transfer) {
	var mask [2]uint8
	mask[0] = t.next(ZeroByte)
	mask[1] = t.next(ZeroByte)
	t.send(pollResultTail[:])
	if !t.ok() {
		return
	}
	r := &d.regs
	r.ResponseMask = mask
	if r.ConfigMode == ModeAnalog {
		r.ConfigMode = ModePressure
	}
}
