// Package buswire is the TCP framing used to drive a controller bus remotely.
package buswire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire constants (network byte order / big-endian)
const (
	Version = 0x0001

	CmdTransfer = 0x0001
	RetTransfer = 0x0002
	CmdStatus   = 0x0003
	RetStatus   = 0x0004

	HeaderSize      = 6
	StatusSize      = 12
	MaxTransferSize = 64
)

var (
	ErrVersion  = errors.New("buswire: unsupported version")
	ErrTooLarge = errors.New("buswire: payload too large")
)

// Header precedes every message in both directions.
type Header struct {
	Version uint16
	Command uint16
	Length  uint16
}

func (h *Header) Write(w io.Writer) error {
	var buf [HeaderSize]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	binary.BigEndian.PutUint16(buf[2:4], h.Command)
	binary.BigEndian.PutUint16(buf[4:6], h.Length)
	_, err := w.Write(buf[:])
	return err
}

func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if err := ReadExactly(r, buf[:]); err != nil {
		return Header{}, err
	}
	h := Header{
		Version: binary.BigEndian.Uint16(buf[0:2]),
		Command: binary.BigEndian.Uint16(buf[2:4]),
		Length:  binary.BigEndian.Uint16(buf[4:6]),
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: 0x%04x", ErrVersion, h.Version)
	}
	if h.Length > MaxTransferSize {
		return h, fmt.Errorf("%w: %d", ErrTooLarge, h.Length)
	}
	return h, nil
}

// WriteMessage writes a header and payload in a single write.
func WriteMessage(w io.Writer, command uint16, payload []byte) error {
	if len(payload) > MaxTransferSize {
		return fmt.Errorf("%w: %d", ErrTooLarge, len(payload))
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], Version)
	binary.BigEndian.PutUint16(buf[2:4], command)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadMessage reads one header and its payload.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return h, nil, err
	}
	payload := make([]byte, h.Length)
	if err := ReadExactly(r, payload); err != nil {
		return h, nil, err
	}
	return h, payload, nil
}

// Status describes the bus behind a server.
type Status struct {
	BusId     uint32
	Transfers uint64
}

func (s *Status) MarshalBinary() ([]byte, error) {
	b := make([]byte, StatusSize)
	binary.BigEndian.PutUint32(b[0:4], s.BusId)
	binary.BigEndian.PutUint64(b[4:12], s.Transfers)
	return b, nil
}

func (s *Status) UnmarshalBinary(data []byte) error {
	if len(data) < StatusSize {
		return io.ErrUnexpectedEOF
	}
	s.BusId = binary.BigEndian.Uint32(data[0:4])
	s.Transfers = binary.BigEndian.Uint64(data[4:12])
	return nil
}

func ReadExactly(r io.Reader, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		if err != nil {
			return err
		}
		n += m
	}
	return nil
}
