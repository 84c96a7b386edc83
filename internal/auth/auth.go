// Package auth secures the bus and host link TCP endpoints with a shared key.
package auth

import (
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

const (
	keySalt        = "PSXPAD-Key-v1"
	keyIterations  = 100000
	sessionContext = "PSXPAD-Session-v1"
)

var ErrEmptyPassword = errors.New("auth: empty password")

// Key is the shared secret both ends of a connection stretch from the same
// password. A nil Key disables authentication.
type Key []byte

// NewPassword returns a random password for a fresh key file.
func NewPassword() string {
	return rand.Text()
}

// KeyFromPassword stretches password into a Key.
func KeyFromPassword(password string) (Key, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	k, err := pbkdf2.Key(sha256.New, password, []byte(keySalt), keyIterations, chachaKeySize)
	return Key(k), err
}

// Enabled reports whether connections must authenticate.
func (k Key) Enabled() bool {
	return len(k) > 0
}

// session derives the key of one connection from both handshake nonces.
func (k Key) session(serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(k)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}
