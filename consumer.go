package redis

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kvgo/respipe/internal/wpool"
	"github.com/kvgo/respipe/log"
)

// StreamEntry is one stream record delivered to a Consumer handler: an
// entry ID plus its field/value map.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// StreamHandler processes one entry. Returning a non-nil error leaves the
// entry unacknowledged (invariant 11): it stays pending and is redelivered
// to the group's XPENDING cohort on a future claim.
type StreamHandler func(entry StreamEntry) error

type registration struct {
	streamKey string
	group     string
	handler   StreamHandler
}

// Consumer is the consumer-group poll loop (C6): for each registered
// (stream, group, handler) it polls XREADGROUP in a loop, fans entries out
// through a worker pool, and XACKs on handler success. Backpressure between
// the poll loop and the pool is governed by ConsumerOptions' high/low water
// marks (§4.6).
type Consumer struct {
	opts   ConsumerOptions
	logger *log.Logger

	client *Client
	pool   *wpool.Pool

	mu    sync.Mutex
	regs  []registration
	wg    sync.WaitGroup
	stop  chan struct{}
	state int32 // 0 idle, 1 running, 2 stopped
}

// NewConsumer constructs a Consumer. clientOpts dials the connection used
// for XGROUP/XREADGROUP/XACK; copts tunes the group identity, concurrency,
// and backpressure thresholds. An empty SessionName generates a random one.
func NewConsumer(clientOpts Options, copts ConsumerOptions) *Consumer {
	copts = copts.normalized()
	if copts.SessionName == "" {
		copts.SessionName = "respipe-" + uuid.NewString()
	}
	return &Consumer{
		opts:   copts,
		logger: clientOpts.Logger,
		client: NewClient(clientOpts),
		pool:   wpool.New(copts.MaxConcurrency),
		stop:   make(chan struct{}),
	}
}

// Connect dials the underlying client connection.
func (c *Consumer) Connect() error {
	return c.client.Connect()
}

// Subscribe binds handler to entries on streamKey for group, creating the
// group (with MKSTREAM) if it does not already exist. Registration takes
// effect once Commit starts the poll loops.
func (c *Consumer) Subscribe(streamKey, group string, handler StreamHandler) error {
	if err := c.ensureGroup(streamKey, group); err != nil {
		return err
	}
	c.mu.Lock()
	c.regs = append(c.regs, registration{streamKey: streamKey, group: group, handler: handler})
	c.mu.Unlock()
	return nil
}

func (c *Consumer) ensureGroup(streamKey, group string) error {
	r, err := c.sendAwait("XGROUP", "CREATE", streamKey, group, "$", "MKSTREAM")
	if err != nil {
		return err
	}
	if err := r.Err(); err != nil {
		if se, ok := err.(ServerError); ok && se.Prefix() == "BUSYGROUP" {
			return nil
		}
		return err
	}
	return nil
}

// Commit starts one poll goroutine per registered stream. Safe to call
// once; subsequent registrations added before Commit are included, ones
// added after are not started automatically.
func (c *Consumer) Commit() error {
	if !atomic.CompareAndSwapInt32(&c.state, 0, 1) {
		return nil
	}
	c.mu.Lock()
	regs := append([]registration(nil), c.regs...)
	c.mu.Unlock()

	for _, reg := range regs {
		reg := reg
		c.wg.Add(1)
		go c.pollLoop(reg)
	}
	return nil
}

// Close stops all poll loops, closes the worker pool (tasks already running
// finish; queued tasks are discarded), and disconnects.
func (c *Consumer) Close() error {
	if atomic.SwapInt32(&c.state, 2) != 2 {
		close(c.stop)
	}
	c.wg.Wait()
	c.pool.Close()
	return c.client.Disconnect()
}

func (c *Consumer) pollLoop(reg registration) {
	defer c.wg.Done()

	blockMillis := c.opts.BlockMillis
	blockArg := strconv.Itoa(blockMillis)
	if blockMillis == BlockForever {
		blockArg = "0" // Redis' own "block forever" spelling, distinct from our BlockMillis==0 (non-blocking)
	}

	countArg := ""
	if c.opts.Count > 0 {
		countArg = strconv.Itoa(c.opts.Count)
	}

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if c.pool.Depth() > c.opts.HighWaterMark {
			for c.pool.Depth() > c.opts.LowWaterMark {
				select {
				case <-c.stop:
					return
				case <-time.After(10 * time.Millisecond):
				}
			}
		}

		argv := []string{"XREADGROUP", "GROUP", reg.group, c.opts.SessionName}
		if blockMillis != 0 {
			argv = append(argv, "BLOCK", blockArg)
		}
		if countArg != "" {
			argv = append(argv, "COUNT", countArg)
		}
		argv = append(argv, "STREAMS", reg.streamKey, ">")

		r, err := c.sendAwait(argv...)
		if err != nil {
			c.logger.Warnf("redis: XREADGROUP failed for %s/%s: %v", reg.streamKey, reg.group, err)
			select {
			case <-c.stop:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if r.IsNull() || r.IsError() {
			if blockMillis == 0 {
				// Non-blocking XREADGROUP with nothing pending: pace the
				// loop instead of busy-spinning on empty replies.
				select {
				case <-c.stop:
					return
				case <-time.After(20 * time.Millisecond):
				}
			}
			continue
		}

		entries, err := parseStreamReply(r, reg.streamKey)
		if err != nil {
			c.logger.Warnf("redis: malformed XREADGROUP reply: %v", err)
			continue
		}

		for _, entry := range entries {
			entry := entry
			c.pool.Submit(func() {
				if err := reg.handler(entry); err != nil {
					consumerFailuresTotal.WithLabelValues(reg.streamKey, reg.group).Inc()
					c.logger.Warnf("redis: handler failed for %s %s: %v", reg.streamKey, entry.ID, err)
					return
				}
				if _, err := c.sendAwait("XACK", reg.streamKey, reg.group, entry.ID); err != nil {
					c.logger.Warnf("redis: XACK failed for %s %s: %v", reg.streamKey, entry.ID, err)
					return
				}
				consumerAcksTotal.WithLabelValues(reg.streamKey, reg.group).Inc()
			})
		}
		consumerPoolDepth.WithLabelValues(reg.group, c.opts.SessionName).Set(float64(c.pool.Depth()))
	}
}

func (c *Consumer) sendAwait(argv ...string) (Reply, error) {
	replyCh := make(chan Reply, 1)
	if err := c.client.Send(func(r Reply) { replyCh <- r }, argv...); err != nil {
		return Reply{}, err
	}
	if err := c.client.Commit(); err != nil {
		return Reply{}, err
	}
	select {
	case r := <-replyCh:
		return r, nil
	case <-c.stop:
		return Reply{}, ErrClosed
	}
}

// parseStreamReply unpacks XREADGROUP's RESP2 shape:
// [[streamKey, [[id, [field, value, ...]], ...]], ...]
// filtered down to the entries belonging to wantKey.
func parseStreamReply(r Reply, wantKey string) ([]StreamEntry, error) {
	streams, err := r.AsArray()
	if err != nil {
		return nil, err
	}
	var out []StreamEntry
	for _, stream := range streams {
		pair, err := stream.AsArray()
		if err != nil || len(pair) != 2 {
			continue
		}
		key, err := pair[0].AsBytes()
		if err != nil || string(key) != wantKey {
			continue
		}
		entries, err := pair[1].AsArray()
		if err != nil {
			continue
		}
		for _, e := range entries {
			fields, err := e.AsArray()
			if err != nil || len(fields) != 2 {
				continue
			}
			id, _ := fields[0].AsBytes()
			kv, err := fields[1].AsArray()
			if err != nil {
				continue
			}
			m := make(map[string]string, len(kv)/2)
			for i := 0; i+1 < len(kv); i += 2 {
				k, _ := kv[i].AsBytes()
				v, _ := kv[i+1].AsBytes()
				m[string(k)] = string(v)
			}
			out = append(out, StreamEntry{ID: string(id), Fields: m})
		}
	}
	return out, nil
}
