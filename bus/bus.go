// Package bus describes the device side of the controller bus: a select line,
// a full-duplex byte shift, and the acknowledge pulse the device raises when it
// is ready for the next byte.
package bus

import (
	"errors"
	"time"
)

// ErrDeselected is returned by Exchange when the select line is released
// before the byte completed.
var ErrDeselected = errors.New("bus: deselected")

// MinAckPulse is the shortest acknowledge pulse a console reliably latches.
const MinAckPulse = 2 * time.Microsecond

// Port is the device-side view of the bus.
//
// Exchange shifts tx out while receiving the console's byte. It blocks until
// the byte completes or the select line deasserts.
// Ack raises the acknowledge pulse that tells the console to clock the next byte.
type Port interface {
	Selected() bool
	Exchange(tx byte) (byte, error)
	Ack()
}

// Waiter is implemented by ports that can signal a select assertion instead
// of being polled.
type Waiter interface {
	Asserted() <-chan struct{}
}
