package redis

import (
	"fmt"
	"sync"
	"time"

	"github.com/kvgo/respipe/internal/resp"
	"github.com/kvgo/respipe/internal/transport"
	"github.com/kvgo/respipe/log"
)

// Connection is the pipelined duplex socket (C3): it feeds received bytes
// into a codec, delivers decoded replies in order to a single installed
// callback, and buffers outbound commands under a mutex until Commit
// flushes them in one write.
//
// A Connection knows nothing about FIFO callback matching, reconnection,
// or auth/select replay — that is Client's job. Connection only guarantees
// wire-order delivery and atomic buffer flush.
type Connection struct {
	readBufSize int
	logger      *log.Logger

	tr  *transport.Transport
	dec *resp.Decoder

	outMu    sync.Mutex
	outbound []byte

	onReply      func(Reply)
	onDisconnect func(error)

	// protoErr records a codec failure so the transport's disconnect
	// callback (invoked with nil on a deliberate ReceiveFunc-false stop)
	// reports the real reason. Only ever touched from the read goroutine.
	protoErr error
}

// NewConnection returns an unconnected Connection. Call Connect to dial.
func NewConnection(logger *log.Logger) *Connection {
	return &Connection{logger: logger}
}

// Connect dials addr (a host:port, or an absolute path for a Unix domain
// socket) and starts the read loop. onReply is invoked, in wire order, for
// every decoded reply; onDisconnect fires exactly once when the connection
// is torn down, whether by a local Disconnect, a peer close, a transport
// error, or a protocol violation.
func (c *Connection) Connect(addr string, timeout time.Duration, readBufSize int, onReply func(Reply), onDisconnect func(error)) error {
	network := "tcp"
	if transport.IsUnixAddr(addr) {
		network = "unix"
	}

	tr, err := transport.Dial(network, addr, timeout)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}

	c.readBufSize = readBufSize
	c.tr = tr
	c.dec = resp.NewDecoder()
	c.onReply = onReply
	c.onDisconnect = onDisconnect
	c.protoErr = nil

	c.tr.Start(readBufSize, c.handleReceive, c.handleDisconnect)
	return nil
}

func (c *Connection) handleReceive(chunk []byte) bool {
	replies, err := c.dec.Feed(chunk)
	for _, r := range replies {
		c.onReply(newReply(r))
	}
	if err != nil {
		c.protoErr = fmt.Errorf("%w: %v", ErrProtocol, err)
		c.logger.Errorf("redis: protocol error, dropping connection: %v", err)
		return false
	}
	return true
}

func (c *Connection) handleDisconnect(err error) {
	if err == nil && c.protoErr != nil {
		err = c.protoErr
	}
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
}

// Send encodes argv and appends it to the outbound buffer. Safe to call
// from any goroutine concurrently with other Sends; the buffer is only
// whole, already-encoded commands at every observation point.
func (c *Connection) Send(argv [][]byte) {
	buf := resp.AppendCommandBytes(nil, argv)
	c.outMu.Lock()
	c.outbound = append(c.outbound, buf...)
	c.outMu.Unlock()
}

// Commit atomically swaps out the outbound buffer and issues one write for
// it. Concurrent Sends racing with Commit only ever race with each other,
// never observe a torn buffer.
func (c *Connection) Commit(deadline time.Time) error {
	c.outMu.Lock()
	out := c.outbound
	c.outbound = nil
	c.outMu.Unlock()

	if len(out) == 0 {
		return nil
	}
	if _, err := c.tr.Write(out, deadline); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Disconnect closes the socket, unblocking the read loop and firing
// onDisconnect with the resulting read error. Callers that initiated the
// close themselves (as Client does) should treat that as an expected,
// non-reportable teardown rather than a surprise drop.
func (c *Connection) Disconnect() error {
	return c.tr.Close()
}
