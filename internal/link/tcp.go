package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Alia5/psxpad/internal/auth"
	"github.com/Alia5/psxpad/internal/log"
)

const handshakeTimeout = 5 * time.Second

// Listener accepts companions over TCP, one at a time. A new companion
// replaces the current one.
type Listener struct {
	*Stream
	ln  net.Listener
	key auth.Key

	connMu sync.Mutex
	conn   net.Conn
}

// ListenTCP opens the host link on a TCP address. When key is non-empty
// every companion must authenticate and the link is encrypted.
func ListenTCP(ctx context.Context, cfg Config, key auth.Key, logger *slog.Logger, rawLogger log.RawLogger) (*Listener, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	l := &Listener{
		Stream: newStream(ctx, cfg.QueueSize, logger, rawLogger),
		ln:     ln,
		key:    key,
	}
	l.addCloser(ln)
	l.addCloser(closerFunc(l.dropConn))

	l.wg.Add(1)
	go l.acceptLoop()

	logger.Info("Host link listening", "addr", ln.Addr().String(), "auth", key.Enabled())
	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (l *Listener) dropConn() error {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		c, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Error("Host link accept error", "error", err)
			continue
		}
		if tcp, ok := c.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		l.wg.Add(1)
		go l.serve(c)
	}
}

func (l *Listener) serve(c net.Conn) {
	defer l.wg.Done()
	remote := c.RemoteAddr().String()

	if l.key.Enabled() {
		_ = c.SetDeadline(time.Now().Add(handshakeTimeout))
		sc, err := auth.Accept(c, l.key)
		if err != nil {
			l.logger.Warn("Companion rejected", "remote", remote, "error", err)
			_ = c.Close()
			return
		}
		_ = c.SetDeadline(time.Time{})
		c = sc
	}

	l.connMu.Lock()
	if l.conn != nil {
		l.logger.Info("Companion replaced", "old", l.conn.RemoteAddr().String(), "new", remote)
		_ = l.conn.Close()
	}
	l.conn = c
	l.connMu.Unlock()
	l.setWriter(c)

	l.logger.Info("Companion connected", "remote", remote)
	err := l.pump(c)
	l.clearWriter(c)

	l.connMu.Lock()
	if l.conn == c {
		l.conn = nil
	}
	l.connMu.Unlock()
	_ = c.Close()

	if l.ctx.Err() == nil {
		l.logger.Info("Companion disconnected", "remote", remote, "error", err)
	}
}
