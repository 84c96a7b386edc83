// Package rt applies real-time scheduling hints to the goroutine running the
// device loop. The console clocks the bus with microsecond deadlines, so the
// loop thread should not be paged out, migrated or preempted.
package rt

import (
	"errors"
	"fmt"
	"runtime"
)

type Config struct {
	LockMemory bool `help:"Lock all process memory with mlockall" env:"PSXPAD_RT_LOCK_MEMORY"`
	CPU        int  `help:"Pin the device loop to this CPU, -1 leaves it unpinned" default:"-1" env:"PSXPAD_RT_CPU"`
	Priority   int  `help:"SCHED_FIFO priority for the device loop (1-99), 0 keeps the default scheduler" default:"0" env:"PSXPAD_RT_PRIORITY"`
}

var (
	ErrBadCPU      = errors.New("rt: cpu out of range")
	ErrBadPriority = errors.New("rt: priority out of range")
	ErrUnsupported = errors.New("rt: not supported on this platform")
)

const maxPriority = 99

// Enabled reports whether any hint is requested.
func (c Config) Enabled() bool {
	return c.LockMemory || c.CPU >= 0 || c.Priority > 0
}

func (c Config) validate() error {
	if c.CPU >= runtime.NumCPU() {
		return fmt.Errorf("%w: %d of %d", ErrBadCPU, c.CPU, runtime.NumCPU())
	}
	if c.Priority < 0 || c.Priority > maxPriority {
		return fmt.Errorf("%w: %d", ErrBadPriority, c.Priority)
	}
	return nil
}

// Apply must run on the goroutine that will drive the device. Pinning and
// priority lock that goroutine to its OS thread for the rest of its life.
// Every hint is attempted; failures are joined.
func Apply(c Config) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.validate(); err != nil {
		return err
	}
	if c.CPU >= 0 || c.Priority > 0 {
		runtime.LockOSThread()
	}
	return apply(c)
}
