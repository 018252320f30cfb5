package redis

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenLoopback(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestConnectionSendCommitDecodesReply(t *testing.T) {
	ln := listenLoopback(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn := NewConnection(nil)
	replies := make(chan Reply, 4)
	err := conn.Connect(ln.Addr().String(), time.Second, 4096, func(r Reply) { replies <- r }, func(error) {})
	require.NoError(t, err)
	defer conn.Disconnect()

	srv := <-accepted
	defer srv.Close()
	go func() {
		buf := make([]byte, 256)
		n, _ := srv.Read(buf)
		if n > 0 {
			srv.Write([]byte("+OK\r\n"))
		}
	}()

	conn.Send([][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	require.NoError(t, conn.Commit(time.Time{}))

	select {
	case r := <-replies:
		s, err := r.AsString()
		require.NoError(t, err)
		assert.Equal(t, "OK", s)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestConnectionProtocolErrorDisconnects(t *testing.T) {
	ln := listenLoopback(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	conn := NewConnection(nil)
	disconnected := make(chan error, 1)
	err := conn.Connect(ln.Addr().String(), time.Second, 4096, func(r Reply) {}, func(err error) { disconnected <- err })
	require.NoError(t, err)
	defer conn.Disconnect()

	srv := <-accepted
	defer srv.Close()
	srv.Write([]byte("?garbage\r\n"))

	select {
	case err := <-disconnected:
		assert.ErrorIs(t, err, ErrProtocol)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for disconnect")
	}
}
