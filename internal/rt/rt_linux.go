package rt

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func apply(c Config) error {
	var errs []error
	if c.LockMemory {
		if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
			errs = append(errs, fmt.Errorf("mlockall: %w", err))
		}
	}
	if c.CPU >= 0 {
		var set unix.CPUSet
		set.Zero()
		set.Set(c.CPU)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			errs = append(errs, fmt.Errorf("pin to cpu %d: %w", c.CPU, err))
		}
	}
	if c.Priority > 0 {
		attr := unix.SchedAttr{
			Size:     unix.SizeofSchedAttr,
			Policy:   unix.SCHED_FIFO,
			Priority: uint32(c.Priority),
		}
		if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
			errs = append(errs, fmt.Errorf("sched_fifo %d: %w", c.Priority, err))
		}
	}
	return errors.Join(errs...)
}
