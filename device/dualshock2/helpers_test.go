package dualshock2_test

import (
	"sync/atomic"
	"time"

	"github.com/Alia5/psxpad/bus"
	"github.com/Alia5/psxpad/device/dualshock2"
)

// scriptPort plays a console that clocks a fixed byte sequence during one
// select assertion. Unless lenient, it releases select when the controller
// does not acknowledge a byte, as a real console does after its timeout.
type scriptPort struct {
	in       []byte
	out      []byte
	acks     int
	selected bool
	lenient  bool

	started bool
	acked   bool
}

func newScript(cmd ...byte) *scriptPort {
	return &scriptPort{in: cmd, selected: true}
}

func (p *scriptPort) Selected() bool { return p.selected }

func (p *scriptPort) Ack() {
	p.acks++
	p.acked = true
}

func (p *scriptPort) Exchange(tx byte) (byte, error) {
	if !p.selected || len(p.in) == 0 || (p.started && !p.acked && !p.lenient) {
		p.selected = false
		return 0, bus.ErrDeselected
	}
	p.started = true
	p.acked = false
	rx := p.in[0]
	p.in = p.in[1:]
	p.out = append(p.out, tx)
	return rx, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingIndicator struct {
	states []bool
}

func (i *recordingIndicator) Set(on bool) { i.states = append(i.states, on) }

func newDevice(clock *fakeClock) *dualshock2.DualShock2 {
	return dualshock2.New(&dualshock2.Options{Clock: clock.Now})
}

// transfer runs one select assertion and returns the bytes the controller shifted out.
func transfer(d *dualshock2.DualShock2, cmd ...byte) []byte {
	p := newScript(cmd...)
	d.Service(p)
	return p.out
}

// feed pushes raw link bytes and returns the last feedback frame produced, or nil.
func feed(d *dualshock2.DualShock2, now time.Time, data []byte) []byte {
	var reply []byte
	for _, b := range data {
		if r := d.FeedLink(b, now); r != nil {
			reply = append([]byte(nil), r...)
		}
	}
	return reply
}

func connect(d *dualshock2.DualShock2, now time.Time) []byte {
	in := dualshock2.NeutralInput()
	return feed(d, now, dualshock2.EncodeFrame(&in, dualshock2.TermNormal))
}

func pad(n int) []byte {
	return make([]byte, n)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var (
	enterConfigCmd = []byte{0x01, 0x43, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
	exitConfigCmd  = []byte{0x01, 0x43, 0x00, 0x00, 0x5A, 0x5A, 0x5A, 0x5A, 0x5A}
	analogLockCmd  = []byte{0x01, 0x44, 0x00, 0x01, 0x03, 0x00, 0x00, 0x00, 0x00}
	motorMapCmd    = []byte{0x01, 0x4D, 0x00, 0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF}
	pressureCmd    = []byte{0x01, 0x4F, 0x00, 0xFF, 0xFF, 0x03, 0x00, 0x00, 0x00}
)

// backToBackPort replays several select assertions without select ever being
// observed released between them: the end of one assertion only shows up as
// a failed exchange, as on a bus where the next master is already waiting.
type backToBackPort struct {
	scripts []*scriptPort
}

func newBackToBack(scripts ...*scriptPort) *backToBackPort {
	return &backToBackPort{scripts: scripts}
}

func (p *backToBackPort) Selected() bool { return len(p.scripts) > 0 }

func (p *backToBackPort) Ack() {
	if len(p.scripts) > 0 {
		p.scripts[0].Ack()
	}
}

func (p *backToBackPort) Exchange(tx byte) (byte, error) {
	if len(p.scripts) == 0 {
		return 0, bus.ErrDeselected
	}
	cur := p.scripts[0]
	rx, err := cur.Exchange(tx)
	if err != nil {
		p.scripts = p.scripts[1:]
	}
	return rx, err
}

// idlePort never asserts select and counts how often it is checked.
type idlePort struct {
	checks atomic.Int64
}

func (p *idlePort) Selected() bool {
	p.checks.Add(1)
	return false
}

func (p *idlePort) Exchange(byte) (byte, error) { return 0, bus.ErrDeselected }

func (p *idlePort) Ack() {}
