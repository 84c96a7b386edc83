// Package busclient drives a remote controller bus the way a console does.
package busclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Alia5/psxpad/buswire"
	"github.com/Alia5/psxpad/internal/auth"
)

// Transferer clocks one select assertion and returns the bytes shifted back.
// Both *Client and *virtualbus.VirtualBus implement it.
type Transferer interface {
	Transfer(ctx context.Context, cmd []byte) ([]byte, error)
}

var ErrUnexpectedReply = errors.New("busclient: unexpected reply")

// Config controls low-level transport behavior such as timeouts.
type Config struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Password     string
}

func defaultConfig() Config {
	return Config{
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

// Client is a connection to a bus server. Requests are serialized.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	cfg  Config
}

// Dial connects to the bus server at addr. A nil cfg uses the defaults; a
// non-empty Password runs the auth handshake before the first request.
func Dial(ctx context.Context, addr string, cfg *Config) (*Client, error) {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	d := &net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			slog.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	if c.Password != "" {
		_ = conn.SetDeadline(time.Now().Add(c.DialTimeout))
		sc, err := auth.Dial(conn, c.Password)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("handshake: %w", err)
		}
		_ = conn.SetDeadline(time.Time{})
		conn = sc
	}
	return &Client{conn: conn, cfg: c}, nil
}

// Transfer sends cmd as one select assertion on the remote bus.
func (c *Client) Transfer(ctx context.Context, cmd []byte) ([]byte, error) {
	return c.roundTrip(ctx, buswire.CmdTransfer, cmd, buswire.RetTransfer)
}

// Status reports the remote bus number and how many assertions it has served.
func (c *Client) Status(ctx context.Context) (buswire.Status, error) {
	var st buswire.Status
	b, err := c.roundTrip(ctx, buswire.CmdStatus, nil, buswire.RetStatus)
	if err != nil {
		return st, err
	}
	if err := st.UnmarshalBinary(b); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(ctx context.Context, cmd uint16, payload []byte, want uint16) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	wd, rd := c.deadlines(ctx)
	_ = c.conn.SetWriteDeadline(wd)
	if err := buswire.WriteMessage(c.conn, cmd, payload); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	_ = c.conn.SetReadDeadline(rd)
	h, reply, err := buswire.ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if h.Command != want {
		return nil, fmt.Errorf("%w: command 0x%04x", ErrUnexpectedReply, h.Command)
	}
	return reply, nil
}

func (c *Client) deadlines(ctx context.Context) (write, read time.Time) {
	now := time.Now()
	if c.cfg.WriteTimeout > 0 {
		write = now.Add(c.cfg.WriteTimeout)
	}
	if c.cfg.ReadTimeout > 0 {
		read = now.Add(c.cfg.ReadTimeout)
	}
	if dl, ok := ctx.Deadline(); ok {
		if write.IsZero() || dl.Before(write) {
			write = dl
		}
		if read.IsZero() || dl.Before(read) {
			read = dl
		}
	}
	return write, read
}
