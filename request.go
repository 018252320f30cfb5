package redis

// command is an ordered argv plus the completion callback it was submitted
// with (§3 Command). Once handed to a Connection it is owned there until
// its reply arrives or the connection is torn down.
type command struct {
	argv [][]byte
	cb   func(Reply)
}

func newCommand(cb func(Reply), argv ...string) *command {
	c := &command{cb: cb, argv: make([][]byte, len(argv))}
	for i, a := range argv {
		c.argv[i] = []byte(a)
	}
	return c
}

func newCommandBytes(cb func(Reply), argv ...[]byte) *command {
	return &command{cb: cb, argv: argv}
}

// invoke runs cb if present; commands submitted without one (fire-and-
// forget sends) simply drop their reply.
func (c *command) invoke(r Reply) {
	if c.cb != nil {
		c.cb(r)
	}
}
