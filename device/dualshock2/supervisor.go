package dualshock2

import "time"

// supervisor tracks the idle and disconnect windows. Both are only
// evaluated while the select line is released.
type supervisor struct {
	idleTimeout       time.Duration
	disconnectTimeout time.Duration

	lastBus   time.Time
	lastFrame time.Time
}

func (s *supervisor) start(now time.Time) {
	s.lastBus = now
	s.lastFrame = now
}

func (s *supervisor) busSeen(now time.Time) {
	s.lastBus = now
}

func (s *supervisor) frameSeen(now time.Time) {
	s.lastFrame = now
}

// Supervise evaluates the idle and disconnect windows at now.
//
// A full idle window resets an active controller (the host connection is
// kept) and toggles the activity indicator. A full disconnect window while
// connected resets everything, so the bus stays silent until the next frame.
func (d *DualShock2) Supervise(now time.Time) {
	r := &d.regs
	s := &d.super

	if now.Sub(s.lastBus) >= s.idleTimeout {
		if r.Active {
			r.Reset()
			d.notify()
		}
		if d.indicator != nil {
			d.heartbeat = !d.heartbeat
			d.indicator.Set(d.heartbeat)
		}
		s.lastBus = now
	}

	if r.Connected && now.Sub(s.lastFrame) >= s.disconnectTimeout {
		r.Disconnect()
		d.notify()
		d.connectionChanged()
	}
}
