package redis

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedServer accepts one connection on ln and hands it to handle on a
// new goroutine, so each test scripts the replies it needs. Good enough to
// exercise the client against a real socket without a full Redis command
// set.
func scriptedServer(t *testing.T, ln net.Listener, handle func(net.Conn)) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handle(conn)
	}()
}

// readCommand reads one RESP array-of-bulk-strings command and returns its
// argv as strings, for simple scripted test servers.
func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	// line is "*N\r\n": parse the element count N.
	n := 0
	for i := 1; i < len(line) && line[i] >= '0' && line[i] <= '9'; i++ {
		n = n*10 + int(line[i]-'0')
	}
	argv := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if _, err := r.ReadString('\n'); err != nil { // "$len\r\n"
			return nil, err
		}
		val, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		argv = append(argv, val[:len(val)-2])
	}
	return argv, nil
}

func TestClientPipelineOrdering(t *testing.T) {
	ln := listenLoopback(t)
	scriptedServer(t, ln, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		for i := 0; i < 3; i++ {
			argv, err := readCommand(r)
			if err != nil {
				return
			}
			switch argv[0] {
			case "SET":
				conn.Write([]byte("+OK\r\n"))
			case "INCRBY":
				conn.Write([]byte(":13\r\n"))
			case "GET":
				conn.Write([]byte("$2\r\n13\r\n"))
			}
		}
	})

	c := NewClient(Options{Addr: ln.Addr().String(), ConnectTimeout: time.Second})
	require.NoError(t, c.Connect())
	defer c.Disconnect()

	var order []string
	require.NoError(t, c.Send(func(r Reply) {
		s, _ := r.AsString()
		order = append(order, "SET:"+s)
	}, "SET", "k", "1"))
	require.NoError(t, c.Send(func(r Reply) {
		v, _ := r.AsInteger()
		order = append(order, "INCRBY:"+strconv.FormatInt(v, 10))
	}, "INCRBY", "k", "12"))
	require.NoError(t, c.Send(func(r Reply) {
		b, _ := r.AsBytes()
		order = append(order, "GET:"+string(b))
	}, "GET", "k"))

	require.NoError(t, c.SyncCommit(time.Second))
	require.Equal(t, []string{"SET:OK", "INCRBY:13", "GET:13"}, order)
}

func TestClientSyncCommitTimeout(t *testing.T) {
	ln := listenLoopback(t)
	scriptedServer(t, ln, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		argv, err := readCommand(r)
		if err != nil || argv[0] != "PING" {
			return
		}
		time.Sleep(100 * time.Millisecond)
		conn.Write([]byte("+PONG\r\n"))
	})

	c := NewClient(Options{Addr: ln.Addr().String(), ConnectTimeout: time.Second})
	require.NoError(t, c.Connect())
	defer c.Disconnect()

	fired := make(chan Reply, 1)
	require.NoError(t, c.Send(func(r Reply) { fired <- r }, "PING"))

	start := time.Now()
	require.NoError(t, c.SyncCommit(10*time.Millisecond))
	assert.Less(t, time.Since(start), 90*time.Millisecond)

	select {
	case <-fired:
		t.Fatal("callback fired before the mock replied")
	default:
	}

	select {
	case r := <-fired:
		s, _ := r.AsString()
		assert.Equal(t, "PONG", s)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

func TestClientReconnectResubmitsPending(t *testing.T) {
	ln := listenLoopback(t)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// Drop the connection immediately without replying, simulating a
		// server restart mid-flight.
		conn.Close()
	}()

	go func() {
		<-firstDone
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		argv, err := readCommand(r)
		if err != nil || len(argv) == 0 {
			return
		}
		if argv[0] == "PING" {
			conn.Write([]byte("+PONG\r\n"))
		}
	}()

	c := NewClient(Options{
		Addr:           ln.Addr().String(),
		ConnectTimeout: time.Second,
		Reconnect:      &ReconnectPolicy{MaxAttempts: 5, RetryInterval: 20 * time.Millisecond},
	})
	require.NoError(t, c.Connect())
	defer c.Disconnect()

	// Give the server time to accept-then-close the first connection and
	// the client time to notice, so the send below lands in the
	// Reconnecting state and exercises the resubmit-on-reconnect path
	// rather than racing a write against a socket mid-teardown.
	require.Eventually(t, func() bool { return !c.IsConnected() }, time.Second, 5*time.Millisecond)

	fired := make(chan Reply, 1)
	require.NoError(t, c.Send(func(r Reply) { fired <- r }, "PING"))
	require.NoError(t, c.Commit())

	select {
	case r := <-fired:
		s, err := r.AsString()
		require.NoError(t, err)
		assert.Equal(t, "PONG", s)
	case <-time.After(3 * time.Second):
		t.Fatal("PING callback never fired after reconnect")
	}
}

// TestClientReconnectResubmitsInFlightQueue is scenario S5 literally:
// submit and commit PING while Connected (so it sits in the FIFO queue,
// already sent), then drop the server side. The callback must still fire
// with PONG after reconnect, never a network error, and must fire exactly
// once.
func TestClientReconnectResubmitsInFlightQueue(t *testing.T) {
	ln := listenLoopback(t)

	firstAccepted := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		close(firstAccepted)
		// Give the test time to Send+Commit while still Connected before
		// the drop, so the command is genuinely in-flight (already on the
		// wire) rather than landing in the Reconnecting resubmit path.
		time.Sleep(30 * time.Millisecond)
		conn.Close()
	}()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		argv, err := readCommand(r)
		if err != nil || len(argv) == 0 {
			return
		}
		if argv[0] == "PING" {
			conn.Write([]byte("+PONG\r\n"))
		}
	}()

	c := NewClient(Options{
		Addr:           ln.Addr().String(),
		ConnectTimeout: time.Second,
		Reconnect:      &ReconnectPolicy{MaxAttempts: 5, RetryInterval: 20 * time.Millisecond},
	})
	require.NoError(t, c.Connect())
	defer c.Disconnect()
	<-firstAccepted
	require.True(t, c.IsConnected())

	fired := make(chan Reply, 1)
	require.NoError(t, c.Send(func(r Reply) { fired <- r }, "PING"))
	require.NoError(t, c.Commit())

	select {
	case r := <-fired:
		s, err := r.AsString()
		require.NoError(t, err)
		assert.Equal(t, "PONG", s)
	case <-time.After(3 * time.Second):
		t.Fatal("PING callback never fired after reconnect")
	}

	select {
	case <-fired:
		t.Fatal("PING callback fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}
