// Package bus serves a virtual controller bus to remote masters over TCP.
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Alia5/psxpad/buswire"
	"github.com/Alia5/psxpad/internal/auth"
	"github.com/Alia5/psxpad/internal/log"
	"github.com/Alia5/psxpad/virtualbus"
)

const defaultHandshakeTimeout = 5 * time.Second

type Server struct {
	config    *ServerConfig
	logger    *slog.Logger
	rawLogger log.RawLogger
	bus       *virtualbus.VirtualBus
	key       auth.Key

	ready     chan struct{}
	readyOnce sync.Once
	ln        net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// New creates a server for vb. When key is non-empty every master must
// complete the auth handshake and the session is encrypted.
func New(config ServerConfig, vb *virtualbus.VirtualBus, key auth.Key, logger *slog.Logger, rawLogger log.RawLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:    &config,
		logger:    logger,
		rawLogger: rawLogger,
		bus:       vb,
		key:       key,
		ready:     make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}
}

// ListenAndServe starts the bus server and handles incoming masters.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("Bus server listening", "addr", ln.Addr().String(), "bus", s.bus.BusID(), "auth", s.key.Enabled())
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("Bus server stopped")
				return nil
			}
			s.logger.Error("Accept error", "error", err)
			continue
		}
		s.logger.Info("Master connected", "remote", c.RemoteAddr())
		go func() {
			if err := s.handleConn(c); err != nil {
				if isClientDisconnect(err) {
					s.logger.Info("Master disconnected", "error", err)
				} else {
					s.logger.Error("Connection handler error", "error", err)
				}
			}
		}()
	}
}

// Ready returns a channel that is closed once the server has successfully bound
// to its listen address and is ready to accept connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting masters and drops the connected ones.
func (s *Server) Close() error {
	s.cancel()
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.connMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connMu.Unlock()
	return err
}

func (s *Server) track(c net.Conn) {
	s.connMu.Lock()
	s.conns[c] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrack(c net.Conn) {
	s.connMu.Lock()
	delete(s.conns, c)
	s.connMu.Unlock()
}

// --

func (s *Server) handleConn(conn net.Conn) error {
	s.track(conn)
	defer s.untrack(conn)
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	if s.key.Enabled() {
		timeout := s.config.ConnectionTimeout
		if timeout <= 0 {
			timeout = defaultHandshakeTimeout
		}
		_ = conn.SetDeadline(time.Now().Add(timeout))
		sc, err := auth.Accept(conn, s.key)
		if err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		_ = conn.SetDeadline(time.Time{})
		conn = sc
	}
	conn = &logConn{Conn: conn, s: s}

	for {
		h, payload, err := buswire.ReadMessage(conn)
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}
		switch h.Command {
		case buswire.CmdTransfer:
			reply, err := s.bus.Transfer(s.ctx, payload)
			if err != nil {
				return fmt.Errorf("transfer: %w", err)
			}
			if err := buswire.WriteMessage(conn, buswire.RetTransfer, reply); err != nil {
				return fmt.Errorf("write reply: %w", err)
			}
		case buswire.CmdStatus:
			st := buswire.Status{BusId: s.bus.BusID(), Transfers: s.bus.Transfers()}
			b, _ := st.MarshalBinary()
			if err := buswire.WriteMessage(conn, buswire.RetStatus, b); err != nil {
				return fmt.Errorf("write status: %w", err)
			}
		default:
			return fmt.Errorf("protocol violation: unknown command 0x%04x", h.Command)
		}
	}
}

type logConn struct {
	net.Conn
	s *Server
}

func (lc *logConn) Read(p []byte) (int, error) {
	n, err := lc.Conn.Read(p)
	if n > 0 && lc.s.rawLogger != nil {
		lc.s.rawLogger.Log(true, p[:n])
	}
	return n, err
}

func (lc *logConn) Write(p []byte) (int, error) {
	n, err := lc.Conn.Write(p)
	if n > 0 && lc.s.rawLogger != nil {
		lc.s.rawLogger.Log(false, p[:n])
	}
	return n, err
}

func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch t := opErr.Err.(type) {
		case syscall.Errno:
			if t == syscall.ECONNRESET || t == syscall.EPIPE {
				return true
			}
		}
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "connection reset by peer") || strings.Contains(e, "forcibly closed") || strings.Contains(e, "aborted")
}
