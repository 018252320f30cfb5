package redis

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kvgo/respipe/log"
)

// connState is the reconnect state machine's current position (§4.4):
// Disconnected -> Connecting -> Connected -> Reconnecting -> Disconnected.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateReconnecting
)

// DisconnectStatus is passed to a user-installed disconnect handler.
type DisconnectStatus string

const (
	// StatusDropped reports an unexpected disconnection (the peer closed
	// the socket, or a read/write failed).
	StatusDropped DisconnectStatus = "dropped"
)

// Client is the pipelined command client (C4): FIFO pairing of submitted
// commands with received replies, reconnection with auth/select replay,
// and a sync_commit primitive layered over the async send/commit pair.
//
// A Client is safe for concurrent use from multiple goroutines; pipelining
// (§1) is exactly this: many producers calling Send concurrently while one
// read goroutine delivers replies in wire order.
type Client struct {
	opts   Options
	logger *log.Logger

	mu    sync.Mutex
	state connState
	conn  *Connection

	// queue is the FIFO of callbacks for commands already handed to the
	// Connection (sent, possibly still in flight). resubmit holds
	// commands accepted while Connecting/Reconnecting, not yet sent.
	queue    []*command
	resubmit []*command

	// Credentials remembered only after a successful AUTH/SELECT reply,
	// replayed in that order before resubmitted/user commands after a
	// reconnect (§4.4).
	password string
	db       int64
	dbSet    bool

	onDisconnect func(DisconnectStatus)
}

// NewClient constructs a Client. Call Connect to establish the underlying
// connection.
func NewClient(opts Options) *Client {
	return &Client{opts: opts.normalized(), logger: opts.Logger, state: stateDisconnected}
}

// OnDisconnect installs the handler invoked when the connection drops,
// whether or not reconnection subsequently succeeds.
func (c *Client) OnDisconnect(fn func(DisconnectStatus)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// Connect dials the configured address, then replays AUTH/SELECT if
// Options.Password/DB were set, before returning. A failed initial AUTH
// leaves the client Disconnected and returns the server's error.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.state != stateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = stateConnecting
	c.mu.Unlock()

	conn := NewConnection(c.logger)
	if err := conn.Connect(c.opts.Addr, c.opts.ConnectTimeout, c.opts.ReadBufferSize, c.dispatchReply, c.onConnDisconnect); err != nil {
		c.mu.Lock()
		c.state = stateDisconnected
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.replayAuthSelect(conn); err != nil {
		c.mu.Lock()
		c.state = stateDisconnected
		c.mu.Unlock()
		conn.Disconnect()
		return err
	}

	c.mu.Lock()
	c.state = stateConnected
	resubmit := c.resubmit
	c.resubmit = nil
	c.mu.Unlock()
	c.flushResubmit(conn, resubmit)

	return nil
}

// IsConnected reports whether the client currently holds a live,
// fully-authenticated connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateConnected
}

// Disconnect forces Disconnected from any state and fails all pending
// callbacks with a network error (§4.4, §5 cancellation).
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == stateDisconnected {
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	pipelineDepth.Sub(float64(len(c.queue)))
	pending := append(c.queue, c.resubmit...)
	c.queue = nil
	c.resubmit = nil
	c.state = stateDisconnected
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Disconnect()
	}
	for _, cmd := range pending {
		cmd.invoke(networkErrorReply("client disconnected"))
	}
	return err
}

// Send appends a command to the FIFO and, when connected, forwards it to
// the Connection's outbound buffer immediately (commit is still required
// to flush). cb may be nil for a fire-and-forget send.
func (c *Client) Send(cb func(Reply), argv ...string) error {
	return c.submit(newCommand(cb, argv...))
}

// SendBytes is Send for raw byte argv (commands whose arguments are not
// necessarily text, e.g. binary values).
func (c *Client) SendBytes(cb func(Reply), argv ...[]byte) error {
	return c.submit(newCommandBytes(cb, argv...))
}

func (c *Client) submit(cmd *command) error {
	c.mu.Lock()
	switch c.state {
	case stateConnected:
		c.queue = append(c.queue, cmd)
		conn := c.conn
		c.mu.Unlock()
		pipelineDepth.Inc()
		conn.Send(cmd.argv)
		return nil

	case stateConnecting, stateReconnecting:
		c.resubmit = append(c.resubmit, cmd)
		c.mu.Unlock()
		return nil

	default: // stateDisconnected
		c.mu.Unlock()
		return ErrStateDisconnected
	}
}

// Commit flushes the outbound buffer. A no-op while Connecting or
// Reconnecting: those commands sit in the resubmit queue until the
// connection is restored, at which point they are sent and committed
// automatically.
func (c *Client) Commit() error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != stateConnected || conn == nil {
		return nil
	}
	return conn.Commit(c.commandDeadline())
}

// SyncCommit captures the currently-queued callbacks, commits, and blocks
// until every captured callback has fired or timeout elapses (timeout<=0
// waits forever). On timeout expiry, callbacks that have not yet fired
// remain installed and will still run when their reply arrives.
func (c *Client) SyncCommit(timeout time.Duration) error {
	c.mu.Lock()
	pending := append([]*command(nil), c.queue...)
	c.mu.Unlock()

	done := make(chan struct{})
	if len(pending) == 0 {
		close(done)
	} else {
		var mu sync.Mutex
		remaining := len(pending)
		for _, cmd := range pending {
			orig := cmd.cb
			cmd.cb = func(r Reply) {
				if orig != nil {
					orig(r)
				}
				mu.Lock()
				remaining--
				fire := remaining == 0
				mu.Unlock()
				if fire {
					close(done)
				}
			}
		}
	}

	if err := c.Commit(); err != nil {
		return err
	}

	if timeout <= 0 {
		<-done
		return nil
	}
	select {
	case <-done:
	case <-time.After(timeout):
	}
	return nil
}

// Auth sends AUTH and, only on a successful reply, remembers the password
// for replay after a future reconnect.
func (c *Client) Auth(password string, cb func(Reply)) error {
	wrapped := func(r Reply) {
		if r.Err() == nil {
			c.mu.Lock()
			c.password = password
			c.mu.Unlock()
		}
		if cb != nil {
			cb(r)
		}
	}
	return c.submit(newCommand(wrapped, "AUTH", password))
}

// Select sends SELECT and, only on a successful reply, remembers the
// database index for replay after a future reconnect.
func (c *Client) Select(db int64, cb func(Reply)) error {
	wrapped := func(r Reply) {
		if r.Err() == nil {
			c.mu.Lock()
			c.db = db
			c.dbSet = true
			c.mu.Unlock()
		}
		if cb != nil {
			cb(r)
		}
	}
	return c.submit(newCommand(wrapped, "SELECT", strconv.FormatInt(db, 10)))
}

func (c *Client) commandDeadline() time.Time {
	if c.opts.CommandTimeout == 0 {
		return time.Time{}
	}
	return time.Now().Add(c.opts.CommandTimeout)
}

// dispatchReply is the Connection's onReply callback: pop the FIFO head
// and invoke it. This runs serially on the connection's read goroutine, so
// invariant (c) — a reply goes to exactly the queue head — holds without
// extra locking beyond the queue mutex.
func (c *Client) dispatchReply(r Reply) {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		c.logger.Warnf("redis: reply received with no pending command: %v", r)
		return
	}
	cmd := c.queue[0]
	c.queue = c.queue[1:]
	c.mu.Unlock()
	pipelineDepth.Dec()
	cmd.invoke(r)
}

// onConnDisconnect is the Connection's onDisconnect callback: it drives the
// Disconnected/Reconnecting transition (§4.4).
func (c *Client) onConnDisconnect(err error) {
	c.mu.Lock()
	if c.state == stateDisconnected {
		// Disconnect() already transitioned us; this is the resulting
		// close-triggered read error arriving after the fact.
		c.mu.Unlock()
		return
	}
	wasConnected := c.state == stateConnected

	if c.opts.Reconnect.MaxAttempts == 0 {
		pipelineDepth.Sub(float64(len(c.queue)))
		pending := append(c.queue, c.resubmit...)
		c.queue = nil
		c.resubmit = nil
		c.state = stateDisconnected
		handler := c.onDisconnect
		c.mu.Unlock()

		for _, cmd := range pending {
			cmd.invoke(networkErrorReply("connection dropped, reconnect disabled"))
		}
		if wasConnected && handler != nil {
			handler(StatusDropped)
		}
		return
	}

	c.state = stateReconnecting
	handler := c.onDisconnect
	// Commands already sent on the dropped connection have no guarantee
	// their reply was ever received, or even sent: §4.4 resubmits them
	// after reconnect rather than failing them, exactly like commands
	// accepted while Connecting/Reconnecting. The in-flight queue goes
	// first, ahead of anything already waiting in resubmit, since it was
	// sent earlier. pipelineDepth's count for these was established when
	// they were queued; flushResubmit re-establishes it once they are
	// actually resent, so cancel it here to avoid double counting.
	if len(c.queue) > 0 {
		pipelineDepth.Sub(float64(len(c.queue)))
		c.resubmit = append(append([]*command(nil), c.queue...), c.resubmit...)
		c.queue = nil
	}
	c.mu.Unlock()

	if wasConnected && handler != nil {
		handler(StatusDropped)
	}
	go c.reconnectLoop()
}

// reconnectLoop retries dialing per policy (§4.4 Reconnecting state). On
// success it replays auth+select, drains the resubmit queue, then
// transitions to Connected. On exhaustion (or an auth failure during
// replay) every pending callback is failed with a network error.
func (c *Client) reconnectLoop() {
	policy := c.opts.Reconnect
	attempts := 0

	for {
		c.mu.Lock()
		if c.state != stateReconnecting {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		if policy.MaxAttempts >= 0 && attempts >= policy.MaxAttempts {
			reconnectFailuresTotal.Inc()
			c.failPending("reconnect attempts exhausted")
			return
		}
		attempts++

		conn := NewConnection(c.logger)
		err := conn.Connect(c.opts.Addr, c.opts.ConnectTimeout, c.opts.ReadBufferSize, c.dispatchReply, c.onConnDisconnect)
		if err != nil {
			time.Sleep(policy.RetryInterval)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		if authErr := c.replayAuthSelect(conn); authErr != nil {
			conn.Disconnect()
			reconnectFailuresTotal.Inc()
			c.failPending(fmt.Sprintf("auth replay failed: %v", authErr))
			return
		}
		reconnectsTotal.Inc()

		c.mu.Lock()
		c.state = stateConnected
		resubmit := c.resubmit
		c.resubmit = nil
		c.mu.Unlock()
		c.flushResubmit(conn, resubmit)
		return
	}
}

// failPending transitions to Disconnected and invokes every queued and
// resubmit-pending callback with a network-error reply exactly once
// (§7 user-visible failure behaviour, property 8).
func (c *Client) failPending(reason string) {
	c.mu.Lock()
	pipelineDepth.Sub(float64(len(c.queue)))
	pending := append(c.queue, c.resubmit...)
	c.queue = nil
	c.resubmit = nil
	c.state = stateDisconnected
	c.mu.Unlock()

	for _, cmd := range pending {
		cmd.invoke(networkErrorReply(reason))
	}
}

// replayAuthSelect replays AUTH then SELECT, in that order, using the last
// successfully-confirmed credentials or (on the very first connect) the
// Options-supplied desired ones. It blocks the calling goroutine (Connect
// or the reconnect loop) until both replies are in, which is always safe
// here: nothing else is competing for the queue head yet.
func (c *Client) replayAuthSelect(conn *Connection) error {
	c.mu.Lock()
	pw := c.password
	if pw == "" {
		pw = c.opts.Password
	}
	wantDB := c.dbSet
	db := c.db
	if !wantDB && c.opts.DB != 0 {
		wantDB = true
		db = c.opts.DB
	}
	c.mu.Unlock()

	if pw != "" {
		if err := c.sendAndAwait(conn, "AUTH", pw); err != nil {
			return err
		}
		c.mu.Lock()
		c.password = pw
		c.mu.Unlock()
	}
	if wantDB {
		if err := c.sendAndAwait(conn, "SELECT", strconv.FormatInt(db, 10)); err != nil {
			return err
		}
		c.mu.Lock()
		c.db = db
		c.dbSet = true
		c.mu.Unlock()
	}
	return nil
}

// sendAndAwait pushes a command straight onto the FIFO and blocks for its
// reply. Used only during connect/reconnect replay, before the client is
// Connected and accepting ordinary Sends, so it cannot race with them.
func (c *Client) sendAndAwait(conn *Connection, argv ...string) error {
	replyCh := make(chan Reply, 1)
	cmd := newCommand(func(r Reply) { replyCh <- r }, argv...)

	c.mu.Lock()
	c.queue = append(c.queue, cmd)
	c.mu.Unlock()
	pipelineDepth.Inc()

	conn.Send(cmd.argv)
	if err := conn.Commit(time.Time{}); err != nil {
		return err
	}
	return (<-replyCh).Err()
}

func (c *Client) flushResubmit(conn *Connection, resubmit []*command) {
	if len(resubmit) == 0 {
		return
	}
	c.mu.Lock()
	c.queue = append(c.queue, resubmit...)
	c.mu.Unlock()
	pipelineDepth.Add(float64(len(resubmit)))

	for _, cmd := range resubmit {
		conn.Send(cmd.argv)
	}
	if err := conn.Commit(time.Time{}); err != nil {
		c.logger.Warnf("redis: failed to flush resubmitted commands: %v", err)
	}
}
