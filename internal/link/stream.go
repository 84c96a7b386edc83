// Package link carries host link frames between a companion process and the
// controller loop over a serial port or TCP.
package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Alia5/psxpad/internal/log"
)

var ErrQueueFull = errors.New("link: outbound queue full")

// Stream adapts a blocking transport to the non-blocking view the
// controller loop needs: inbound bytes arrive on a channel, outbound writes
// are queued and never block.
type Stream struct {
	logger    *slog.Logger
	rawLogger log.RawLogger

	rx chan byte
	tx chan []byte

	mu sync.Mutex
	w  io.Writer

	dropped atomic.Uint64
	closers []io.Closer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newStream(ctx context.Context, queueSize int, logger *slog.Logger, rawLogger log.RawLogger) *Stream {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		logger:    logger,
		rawLogger: rawLogger,
		rx:        make(chan byte, queueSize),
		tx:        make(chan []byte, queueSize/4+1),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s
}

// Bytes delivers inbound bytes in order. It is closed when the transport
// fails permanently.
func (s *Stream) Bytes() <-chan byte {
	return s.rx
}

// Write queues p for the current peer. It never blocks; when the queue is
// full p is dropped.
func (s *Stream) Write(p []byte) (int, error) {
	buf := append([]byte(nil), p...)
	select {
	case s.tx <- buf:
		return len(p), nil
	default:
		s.dropped.Add(1)
		return 0, ErrQueueFull
	}
}

// Dropped returns how many outbound writes were dropped.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops all pumps and releases the transport.
func (s *Stream) Close() error {
	var errs []error
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		for _, c := range s.closers {
			if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return errors.Join(errs...)
}

func (s *Stream) addCloser(c io.Closer) {
	s.mu.Lock()
	s.closers = append(s.closers, c)
	s.mu.Unlock()
}

func (s *Stream) setWriter(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *Stream) clearWriter(w io.Writer) {
	s.mu.Lock()
	if s.w == w {
		s.w = nil
	}
	s.mu.Unlock()
}

func (s *Stream) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case p := <-s.tx:
			s.mu.Lock()
			w := s.w
			s.mu.Unlock()
			if w == nil {
				s.dropped.Add(1)
				continue
			}
			if _, err := w.Write(p); err != nil {
				s.logger.Debug("Host link write failed", "error", err)
				continue
			}
			if s.rawLogger != nil {
				s.rawLogger.Log(false, p)
			}
		}
	}
}

// pump copies r into the inbound channel until r fails or the stream is
// closed. A read returning no data and no error is treated as a timeout.
func (s *Stream) pump(r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if s.rawLogger != nil {
				s.rawLogger.Log(true, buf[:n])
			}
			for _, b := range buf[:n] {
				select {
				case s.rx <- b:
				case <-s.ctx.Done():
					return s.ctx.Err()
				}
			}
		}
		if err != nil {
			return err
		}
		if err := s.ctx.Err(); err != nil {
			return err
		}
	}
}
