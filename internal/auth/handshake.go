package auth

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net"
)

const (
	HandshakeMagic = "PSX1\x00"
	NonceSize      = 32
	authContext    = "PSXPAD-Auth-v1"

	acceptReply = "OK\x00"
	rejectReply = "NO\x00"
)

var (
	ErrUnauthorized = errors.New("auth: invalid password")
	ErrNoHandshake  = errors.New("auth: peer did not authenticate")
)

// ReadClientNonce reads client nonce from handshake
// Expects handshake magic already consumed, reads only the 32-byte nonce
func ReadClientNonce(r io.Reader) (clientNonce []byte, err error) {
	clientNonce = make([]byte, NonceSize)
	if _, err = io.ReadFull(r, clientNonce); err != nil {
		return nil, fmt.Errorf("read client nonce: %w", err)
	}
	return clientNonce, nil
}

// WriteServerHandshake generates server nonce and sends response
// Sends: "OK\0" + server_nonce[32]
func WriteServerHandshake(w io.Writer) (serverNonce []byte, err error) {
	if w == nil {
		return nil, fmt.Errorf("write response: write on nil pointer")
	}
	serverNonce = make([]byte, NonceSize)
	if _, err = rand.Read(serverNonce); err != nil {
		return nil, fmt.Errorf("generate server nonce: %w", err)
	}

	response := append([]byte(acceptReply), serverNonce...)
	if _, err = w.Write(response); err != nil {
		return nil, fmt.Errorf("write response: %w", err)
	}

	return serverNonce, nil
}

// IsAuthHandshake checks if the next bytes in reader match the handshake magic
func IsAuthHandshake(r *bufio.Reader) (bool, error) {
	b, err := r.Peek(len(HandshakeMagic))
	if err != nil {
		return false, err
	}
	return string(b) == HandshakeMagic, nil
}

func clientMAC(key Key, clientNonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(authContext))
	_, _ = mac.Write(clientNonce)
	return mac.Sum(nil)
}

// HandleAuthHandshake performs the authentication handshake
func HandleAuthHandshake(r *bufio.Reader, w io.Writer, key Key, isClient bool) (clientNonce, serverNonce []byte, err error) {
	if r == nil {
		return nil, nil, fmt.Errorf("handshake: nil reader")
	}
	if w == nil {
		return nil, nil, fmt.Errorf("handshake: nil writer")
	}
	if !key.Enabled() {
		return nil, nil, fmt.Errorf("handshake: missing key")
	}

	if isClient {
		clientNonce = make([]byte, NonceSize)
		if _, err := rand.Read(clientNonce); err != nil {
			return nil, nil, fmt.Errorf("generate client nonce: %w", err)
		}

		msg := append([]byte(HandshakeMagic), clientNonce...)
		msg = append(msg, clientMAC(key, clientNonce)...)
		if _, err := w.Write(msg); err != nil {
			return nil, nil, fmt.Errorf("write handshake: %w", err)
		}

		reply := make([]byte, len(acceptReply))
		if _, err := io.ReadFull(r, reply); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil, ErrUnauthorized
			}
			return nil, nil, fmt.Errorf("read handshake response: %w", err)
		}
		switch string(reply) {
		case acceptReply:
		case rejectReply:
			return nil, nil, ErrUnauthorized
		default:
			return nil, nil, fmt.Errorf("invalid handshake response from server: %q", reply)
		}

		serverNonce = make([]byte, NonceSize)
		if _, err := io.ReadFull(r, serverNonce); err != nil {
			return nil, nil, fmt.Errorf("read server nonce: %w", err)
		}
		return clientNonce, serverNonce, nil
	}

	_, err = r.Discard(len(HandshakeMagic))
	if err != nil {
		return nil, nil, fmt.Errorf("discard handshake magic: %w", err)
	}

	clientNonce, err = ReadClientNonce(r)
	if err != nil {
		return nil, nil, err
	}

	clientAuth := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, clientAuth); err != nil {
		return nil, nil, fmt.Errorf("read client auth: %w", err)
	}

	if !hmac.Equal(clientAuth, clientMAC(key, clientNonce)) {
		_, _ = w.Write([]byte(rejectReply))
		return nil, nil, ErrUnauthorized
	}

	serverNonce, err = WriteServerHandshake(w)
	if err != nil {
		return nil, nil, err
	}

	return clientNonce, serverNonce, nil
}

// bufferedConn keeps bytes the handshake reader pulled ahead of the
// encrypted stream.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// Accept runs the server side of the handshake on conn and returns the
// encrypted connection.
func Accept(conn net.Conn, key Key) (net.Conn, error) {
	r := bufio.NewReader(conn)
	ok, err := IsAuthHandshake(r)
	if err != nil {
		return nil, fmt.Errorf("peek handshake: %w", err)
	}
	if !ok {
		_, _ = conn.Write([]byte(rejectReply))
		return nil, ErrNoHandshake
	}
	clientNonce, serverNonce, err := HandleAuthHandshake(r, conn, key, false)
	if err != nil {
		return nil, err
	}
	return WrapConn(&bufferedConn{Conn: conn, r: r}, key.session(serverNonce, clientNonce), true)
}

// Dial runs the client side of the handshake on conn with a key derived
// from password and returns the encrypted connection.
func Dial(conn net.Conn, password string) (net.Conn, error) {
	key, err := KeyFromPassword(password)
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(conn)
	clientNonce, serverNonce, err := HandleAuthHandshake(r, conn, key, true)
	if err != nil {
		return nil, err
	}
	return WrapConn(&bufferedConn{Conn: conn, r: r}, key.session(serverNonce, clientNonce), false)
}
