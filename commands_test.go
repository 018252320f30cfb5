package redis

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCommandWrappers(t *testing.T) {
	ln := listenLoopback(t)
	scriptedServer(t, ln, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		for i := 0; i < 2; i++ {
			argv, err := readCommand(r)
			if err != nil {
				return
			}
			switch argv[0] {
			case "SET":
				conn.Write([]byte("+OK\r\n"))
			case "GET":
				conn.Write([]byte("$3\r\nbar\r\n"))
			}
		}
	})

	c := NewClient(Options{Addr: ln.Addr().String(), ConnectTimeout: time.Second})
	require.NoError(t, c.Connect())
	defer c.Disconnect()

	var setReply, getReply Reply
	require.NoError(t, c.Set(func(r Reply) { setReply = r }, "foo", "bar"))
	require.NoError(t, c.Get(func(r Reply) { getReply = r }, "foo"))
	require.NoError(t, c.SyncCommit(time.Second))

	s, err := setReply.AsString()
	require.NoError(t, err)
	assert.Equal(t, "OK", s)

	b, err := getReply.AsBytes()
	require.NoError(t, err)
	assert.Equal(t, "bar", string(b))
}
