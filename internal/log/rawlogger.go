package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records raw traffic of one channel (host link or bus).
type RawLogger interface {
	// Log records data; in is true for bytes received by this process.
	Log(in bool, data []byte)
}

type rawLogger struct {
	w       io.Writer
	channel string
	mu      *sync.Mutex
}

// NewRaw creates a RawLogger writing to w. A nil w yields a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w, channel: "raw", mu: &sync.Mutex{}}
}

// Channel returns a logger sharing l's output that tags lines with name.
// Loggers not created by NewRaw are returned unchanged.
func Channel(l RawLogger, name string) RawLogger {
	r, ok := l.(*rawLogger)
	if !ok {
		return l
	}
	return &rawLogger{w: r.w, channel: name, mu: r.mu}
}

// Log emits a single-line raw traffic log with timestamp and hex dump.
func (r *rawLogger) Log(in bool, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}

	dir := "tx"
	if in {
		dir = "rx"
	}

	var hexbuf bytes.Buffer
	const hexdigits = "0123456789abcdef"
	for i, b := range data {
		if i > 0 {
			hexbuf.WriteByte(' ')
		}
		hexbuf.WriteByte(hexdigits[b>>4])
		hexbuf.WriteByte(hexdigits[b&0x0f])
	}

	line := fmt.Sprintf("%s %-4s %s %3d: %s\n",
		time.Now().Format("2006/01/02 15:04:05.000000"),
		r.channel,
		dir,
		len(data),
		hexbuf.String())

	r.mu.Lock()
	_, _ = r.w.Write([]byte(line))
	r.mu.Unlock()
}
