package auth

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// Conn frames every Write as one sealed packet: u32 BE length, 12-byte nonce,
// ciphertext. The nonce carries the sender's role and a counter, so both
// directions can share one session key and replayed packets are refused.
type Conn struct {
	net.Conn
	aead cipher.AEAD

	role    uint32
	sendMu  sync.Mutex
	sendCtr uint64

	recvBuf  bytes.Buffer
	recvNext uint64
}

const (
	maxPacketSize = 64 * 1024
	chachaKeySize = chacha20poly1305.KeySize

	roleClient uint32 = 0x00000001
	roleServer uint32 = 0x00000002
)

var ErrReplay = errors.New("auth: packet out of sequence")

// WrapConn seals conn with sessionKey. Both ends must agree on which side
// is the server.
func WrapConn(conn net.Conn, sessionKey []byte, isServer bool) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	role := roleClient
	if isServer {
		role = roleServer
	}
	return &Conn{Conn: conn, aead: aead, role: role}, nil
}

func (s *Conn) peerRole() uint32 {
	if s.role == roleServer {
		return roleClient
	}
	return roleServer
}

func (s *Conn) Write(p []byte) (int, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var nonce [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint32(nonce[0:4], s.role)
	binary.BigEndian.PutUint64(nonce[4:], s.sendCtr)
	s.sendCtr++

	pkt := make([]byte, 4, 4+len(nonce)+len(p)+s.aead.Overhead())
	binary.BigEndian.PutUint32(pkt[0:4], uint32(len(nonce)+len(p)+s.aead.Overhead()))
	pkt = append(pkt, nonce[:]...)
	pkt = s.aead.Seal(pkt, nonce[:], p, nil)

	if _, err := s.Conn.Write(pkt); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Conn) Read(p []byte) (int, error) {
	if s.recvBuf.Len() == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(s.Conn, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length > maxPacketSize || length < chacha20poly1305.NonceSize {
			return 0, io.ErrUnexpectedEOF
		}

		pkt := make([]byte, length)
		if _, err := io.ReadFull(s.Conn, pkt); err != nil {
			return 0, err
		}

		nonce := pkt[:chacha20poly1305.NonceSize]
		if binary.BigEndian.Uint32(nonce[0:4]) != s.peerRole() ||
			binary.BigEndian.Uint64(nonce[4:]) != s.recvNext {
			return 0, ErrReplay
		}

		pt, err := s.aead.Open(nil, nonce, pkt[chacha20poly1305.NonceSize:], nil)
		if err != nil {
			return 0, err
		}
		s.recvNext++
		s.recvBuf.Write(pt)
	}
	return s.recvBuf.Read(p)
}
