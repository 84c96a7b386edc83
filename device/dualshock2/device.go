// Package dualshock2 emulates the controller side of the DualShock 2 bus
// protocol, fed by a host link that carries the physical pad state.
//
// A DualShock2 is driven from a single goroutine: Run (or repeated Step
// calls) services the bus while the select line is asserted and otherwise
// consumes host link bytes and evaluates the idle and disconnect windows.
// Nothing in this package allocates on the bus path or logs.
package dualshock2

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Alia5/psxpad/bus"
)

// ErrLinkClosed is returned by Run when the host link byte channel closes.
var ErrLinkClosed = errors.New("dualshock2: host link closed")

// Link is the host link as seen by the idle path. Bytes delivers inbound
// bytes; Write must not block and must copy p.
type Link interface {
	Bytes() <-chan byte
	io.Writer
}

// Indicator is an optional activity light. It is lit while the bus is
// serviced and blinks once per idle window.
type Indicator interface {
	Set(on bool)
}

type Options struct {
	IdleTimeout       time.Duration
	DisconnectTimeout time.Duration
	// PollInterval bounds how long Run waits between supervisor checks.
	PollInterval time.Duration
	// SelectPoll is how often Run checks the select line of a port that
	// does not implement bus.Waiter.
	SelectPoll time.Duration
	Clock      func() time.Time
	Indicator  Indicator
}

type DualShock2 struct {
	regs   Registers
	frames frameDecoder
	super  supervisor
	ignore bool

	feedback   [FeedbackSize]byte
	outputFunc func(OutputState)
	connFunc   func(connected bool)

	clock        func() time.Time
	pollInterval time.Duration
	selectPoll   time.Duration
	indicator    Indicator
	heartbeat    bool
}

func New(o *Options) *DualShock2 {
	d := &DualShock2{
		regs:         DefaultRegisters(),
		clock:        time.Now,
		pollInterval: DefaultPollInterval,
		selectPoll:   DefaultSelectPoll,
		super: supervisor{
			idleTimeout:       DefaultIdleTimeout,
			disconnectTimeout: DefaultDisconnectTimeout,
		},
	}
	if o != nil {
		if o.IdleTimeout > 0 {
			d.super.idleTimeout = o.IdleTimeout
		}
		if o.DisconnectTimeout > 0 {
			d.super.disconnectTimeout = o.DisconnectTimeout
		}
		if o.PollInterval > 0 {
			d.pollInterval = o.PollInterval
		}
		if o.SelectPoll > 0 {
			d.selectPoll = o.SelectPoll
		}
		if o.Clock != nil {
			d.clock = o.Clock
		}
		d.indicator = o.Indicator
	}
	d.super.start(d.clock())
	return d
}

// SetOutputCallback registers f to observe feedback changes. f runs on the
// loop goroutine and must return quickly.
func (d *DualShock2) SetOutputCallback(f func(OutputState)) {
	d.outputFunc = f
}

// SetConnectionCallback registers f to observe the host link connection
// state: true on the first accepted frame, false on a disconnect frame or
// when the disconnect window expires. f runs on the loop goroutine.
func (d *DualShock2) SetConnectionCallback(f func(connected bool)) {
	d.connFunc = f
}

// Registers returns a snapshot of the controller state. Only safe from the
// goroutine driving the device.
func (d *DualShock2) Registers() Registers {
	return d.regs
}

// Step performs one loop iteration without blocking.
func (d *DualShock2) Step(port bus.Port, link Link) error {
	if port != nil && port.Selected() {
		d.Service(port)
		return nil
	}
	if link != nil {
		select {
		case b, ok := <-link.Bytes():
			if !ok {
				return ErrLinkClosed
			}
			d.handleLinkByte(b, link)
		default:
		}
	}
	d.Supervise(d.clock())
	return nil
}

// Run drives the device until ctx is cancelled or the link closes. Ports
// implementing bus.Waiter let Run sleep between events; others are polled.
func (d *DualShock2) Run(ctx context.Context, port bus.Port, link Link) error {
	var asserted <-chan struct{}
	if w, ok := port.(bus.Waiter); ok {
		asserted = w.Asserted()
	}
	if asserted == nil {
		return d.runPolled(ctx, port, link)
	}

	var rx <-chan byte
	if link != nil {
		rx = link.Bytes()
	}
	tick := time.NewTicker(d.pollInterval)
	defer tick.Stop()

	for {
		if port.Selected() {
			d.Service(port)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-asserted:
		case b, ok := <-rx:
			if !ok {
				return ErrLinkClosed
			}
			d.handleLinkByte(b, link)
		case <-tick.C:
		}
		d.Supervise(d.clock())
	}
}

// runPolled drives a port that cannot signal an assertion. Between checks of
// the select line it waits up to selectPoll, waking early for link bytes.
func (d *DualShock2) runPolled(ctx context.Context, port bus.Port, link Link) error {
	var rx <-chan byte
	if link != nil {
		rx = link.Bytes()
	}
	wait := time.NewTimer(d.selectPoll)
	defer wait.Stop()

	for {
		if port != nil && port.Selected() {
			d.Service(port)
			continue
		}
		wait.Reset(d.selectPoll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-rx:
			if !ok {
				return ErrLinkClosed
			}
			d.handleLinkByte(b, link)
		case <-wait.C:
		}
		d.Supervise(d.clock())
	}
}

func (d *DualShock2) handleLinkByte(b byte, link Link) {
	if reply := d.FeedLink(b, d.clock()); reply != nil {
		_, _ = link.Write(reply)
	}
}
