package redis

// Future is a one-shot handle for a command's eventual Reply, layered over
// the callback-based Send with no additional Client state: SendFuture
// allocates the channel, installs a callback that resolves it, and returns
// the handle. Grounded on the blocking get() a future-style client exposes
// over the same async primitives (submit now, block for the value later).
type Future struct {
	ch chan Reply
}

// Get blocks until the reply arrives.
func (f Future) Get() Reply {
	return <-f.ch
}

// SendFuture submits argv and returns a Future for its reply instead of
// taking a callback. Commit (or SyncCommit) is still required to flush it.
func (c *Client) SendFuture(argv ...string) (Future, error) {
	f := Future{ch: make(chan Reply, 1)}
	if err := c.Send(func(r Reply) { f.ch <- r }, argv...); err != nil {
		return Future{}, err
	}
	return f, nil
}

// SendBytesFuture is SendFuture for raw byte argv.
func (c *Client) SendBytesFuture(argv ...[]byte) (Future, error) {
	f := Future{ch: make(chan Reply, 1)}
	if err := c.SendBytes(func(r Reply) { f.ch <- r }, argv...); err != nil {
		return Future{}, err
	}
	return f, nil
}
