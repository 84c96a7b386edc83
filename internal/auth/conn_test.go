package auth_test

import (
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/Alia5/psxpad/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server, err = ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestConn(t *testing.T) {
	type testCase struct {
		name        string
		clientKey   []byte
		serverKey   []byte
		expectedErr string
	}

	key, err := auth.KeyFromPassword("test123")
	require.NoError(t, err)
	otherKey, err := auth.KeyFromPassword("123test")
	require.NoError(t, err)

	testCases := []testCase{
		{name: "round trip", clientKey: key, serverKey: key},
		{name: "differing keys", clientKey: key, serverKey: otherKey, expectedErr: "message authentication failed"},
		{name: "bad key length", clientKey: []byte{1, 2, 3}, serverKey: key, expectedErr: "bad key length"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clientConn, serverConn := tcpPair(t)

			client, err := auth.WrapConn(clientConn, tc.clientKey, false)
			if err != nil {
				assert.ErrorContains(t, err, tc.expectedErr)
				return
			}
			server, err := auth.WrapConn(serverConn, tc.serverKey, true)
			require.NoError(t, err)

			_, err = client.Write([]byte{0x5A, 0x01, 0x02})
			require.NoError(t, err)

			buf := make([]byte, 3)
			_, err = io.ReadFull(server, buf)
			if tc.expectedErr != "" {
				assert.ErrorContains(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []byte{0x5A, 0x01, 0x02}, buf)

			_, err = server.Write([]byte{0x5A, 0x00, 0x00, 0x55})
			require.NoError(t, err)
			reply := make([]byte, 4)
			_, err = io.ReadFull(client, reply)
			require.NoError(t, err)
			assert.Equal(t, []byte{0x5A, 0x00, 0x00, 0x55}, reply)
		})
	}
}

func TestConnRejectsReflectedPacket(t *testing.T) {
	key, err := auth.KeyFromPassword("test123")
	require.NoError(t, err)

	clientConn, serverConn := tcpPair(t)
	client, err := auth.WrapConn(clientConn, key, false)
	require.NoError(t, err)

	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)

	var hdr [4]byte
	_, err = io.ReadFull(serverConn, hdr[:])
	require.NoError(t, err)
	pkt := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	_, err = io.ReadFull(serverConn, pkt)
	require.NoError(t, err)

	_, err = serverConn.Write(append(hdr[:], pkt...))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = client.Read(buf)
	assert.ErrorIs(t, err, auth.ErrReplay)
}
