// Package virtualbus is an in-process controller bus. The device side
// implements bus.Port; a console-side master drives it with Transfer.
package virtualbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alia5/psxpad/bus"
)

const (
	DefaultAckTimeout    = 2 * time.Millisecond
	DefaultSelectTimeout = 50 * time.Millisecond
)

var ErrClosed = errors.New("virtualbus: closed")

var (
	globalBusCounter uint32
	allocatedBusIds  = make(map[uint32]bool)
	globalMutex      sync.Mutex
)

type Config struct {
	// AckTimeout is how long the master waits for an acknowledge before
	// releasing select.
	AckTimeout time.Duration
	// SelectTimeout is how long the master waits for the device to clock the
	// first byte of an assertion.
	SelectTimeout time.Duration
}

// session is one select assertion. Its channels are never reused, so a
// device still finishing an old session cannot see bytes of the next one.
type session struct {
	mosi chan byte
	miso chan byte
	ack  chan struct{}
	done chan struct{}
}

func newSession() *session {
	return &session{
		mosi: make(chan byte),
		miso: make(chan byte, 1),
		ack:  make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *session) ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// VirtualBus connects one controller to any number of masters, one
// assertion at a time.
type VirtualBus struct {
	busId uint32
	cfg   Config

	master   sync.Mutex
	current  atomic.Pointer[session]
	asserted chan struct{}
	closed   chan struct{}
	once     sync.Once

	// dev is the session the device is bound to until it observes the end
	// of it. Device goroutine only.
	dev *session

	transfers atomic.Uint64
}

// New creates a bus with a unique auto-assigned bus number.
func New(cfg Config) *VirtualBus {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	busId := globalBusCounter
	if busId == 0 {
		busId = 1
	}
	for allocatedBusIds[busId] {
		busId++
	}
	globalBusCounter = busId + 1
	allocatedBusIds[busId] = true

	return newBus(busId, cfg)
}

// NewWithBusId creates a bus with a specific bus number.
// Returns an error if the bus number is already allocated.
func NewWithBusId(busId uint32, cfg Config) (*VirtualBus, error) {
	globalMutex.Lock()
	defer globalMutex.Unlock()

	if allocatedBusIds[busId] {
		return nil, fmt.Errorf("bus number %d already allocated", busId)
	}
	allocatedBusIds[busId] = true
	return newBus(busId, cfg), nil
}

func newBus(busId uint32, cfg Config) *VirtualBus {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.SelectTimeout <= 0 {
		cfg.SelectTimeout = DefaultSelectTimeout
	}
	return &VirtualBus{
		busId:    busId,
		cfg:      cfg,
		asserted: make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// BusID returns the bus number.
func (vb *VirtualBus) BusID() uint32 {
	return vb.busId
}

// Transfers returns how many assertions have completed.
func (vb *VirtualBus) Transfers() uint64 {
	return vb.transfers.Load()
}

// Close releases the bus number and fails every later Transfer.
func (vb *VirtualBus) Close() error {
	vb.once.Do(func() {
		close(vb.closed)
		globalMutex.Lock()
		delete(allocatedBusIds, vb.busId)
		globalMutex.Unlock()
	})
	return nil
}

// Transfer asserts select, clocks cmd one byte at a time and returns the
// bytes the device shifted out. Every byte after the first waits for the
// device's acknowledge; when it does not come the assertion ends early and the
// bytes exchanged so far are returned without error.
func (vb *VirtualBus) Transfer(ctx context.Context, cmd []byte) ([]byte, error) {
	vb.master.Lock()
	defer vb.master.Unlock()

	select {
	case <-vb.closed:
		return nil, ErrClosed
	default:
	}

	s := newSession()
	vb.current.Store(s)
	select {
	case vb.asserted <- struct{}{}:
	default:
	}
	defer func() {
		close(s.done)
		vb.current.CompareAndSwap(s, nil)
		vb.transfers.Add(1)
	}()

	reply := make([]byte, 0, len(cmd))
	for i, b := range cmd {
		wait := vb.cfg.SelectTimeout
		if i > 0 {
			wait = vb.cfg.AckTimeout
		}
		timer := time.NewTimer(wait)
		if i > 0 {
			select {
			case <-s.ack:
			case <-timer.C:
				return reply, nil
			case <-ctx.Done():
				timer.Stop()
				return reply, ctx.Err()
			case <-vb.closed:
				timer.Stop()
				return reply, ErrClosed
			}
		}
		select {
		case s.mosi <- b:
			timer.Stop()
		case <-timer.C:
			return reply, nil
		case <-ctx.Done():
			timer.Stop()
			return reply, ctx.Err()
		case <-vb.closed:
			timer.Stop()
			return reply, ErrClosed
		}
		reply = append(reply, <-s.miso)
	}
	return reply, nil
}

// Selected reports whether a master holds select.
func (vb *VirtualBus) Selected() bool {
	s := vb.current.Load()
	return s != nil && !s.ended()
}

// Asserted signals when a master asserts select.
func (vb *VirtualBus) Asserted() <-chan struct{} {
	return vb.asserted
}

// Exchange implements bus.Port.
func (vb *VirtualBus) Exchange(tx byte) (byte, error) {
	s := vb.dev
	if s == nil {
		s = vb.current.Load()
		if s == nil || s.ended() {
			return 0, bus.ErrDeselected
		}
		vb.dev = s
	}
	select {
	case rx := <-s.mosi:
		s.miso <- tx
		return rx, nil
	case <-s.done:
		vb.dev = nil
		return 0, bus.ErrDeselected
	}
}

// Ack implements bus.Port.
func (vb *VirtualBus) Ack() {
	if s := vb.dev; s != nil {
		select {
		case s.ack <- struct{}{}:
		default:
		}
	}
}
