package redis

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kvgo/respipe/log"
)

// allowedInSubscriberMode are the only commands a subscriber-mode
// connection accepts once at least one channel or pattern subscription is
// active (§4.5, Open Question (b)): SUBSCRIBE/UNSUBSCRIBE/PSUBSCRIBE/
// PUNSUBSCRIBE to manage subscriptions, plus PING and QUIT to keep the
// connection alive and close it cleanly.
var allowedInSubscriberMode = map[string]bool{
	"SUBSCRIBE":    true,
	"UNSUBSCRIBE":  true,
	"PSUBSCRIBE":   true,
	"PUNSUBSCRIBE": true,
	"PING":         true,
	"QUIT":         true,
}

// Subscriber is the pub/sub client (C5): it drives the same Connection as
// Client but bypasses the FIFO queue entirely, dispatching every pushed
// array reply by its first element (subscribe/unsubscribe/psubscribe/
// punsubscribe/message/pmessage) to per-channel and per-pattern handlers.
//
// Command replies (the SUBSCRIBE/UNSUBSCRIBE acks) and message pushes share
// one wire; there is no request/reply pairing to get wrong because
// Subscriber never queues a callback for them in the first place.
type Subscriber struct {
	opts   Options
	logger *log.Logger

	conn *Connection

	mu       sync.Mutex
	channels map[string]func(channel string, payload []byte)
	patterns map[string]func(channel string, payload []byte)
	active   bool // true once any subscription exists; gates command restriction

	// acks counts acknowledged subscribe/unsubscribe/psubscribe/
	// punsubscribe frames received from the server (§3 SubscriberState).
	acks int64

	onDisconnect func(error)
}

// NewSubscriber constructs a Subscriber. Call Connect to dial.
func NewSubscriber(opts Options) *Subscriber {
	return &Subscriber{
		opts:     opts.normalized(),
		logger:   opts.Logger,
		channels: make(map[string]func(string, []byte)),
		patterns: make(map[string]func(string, []byte)),
	}
}

// Acks returns the number of acknowledged subscribe/unsubscribe/
// psubscribe/punsubscribe frames received from the server so far.
func (s *Subscriber) Acks() int64 {
	return atomic.LoadInt64(&s.acks)
}

// OnDisconnect installs the handler invoked when the underlying connection
// drops. Subscriber does not reconnect or replay subscriptions itself;
// callers that want that resilience re-subscribe from the handler.
func (s *Subscriber) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	s.onDisconnect = fn
	s.mu.Unlock()
}

// Connect dials the configured address and starts dispatching pushes.
func (s *Subscriber) Connect() error {
	conn := NewConnection(s.logger)
	if err := conn.Connect(s.opts.Addr, s.opts.ConnectTimeout, s.opts.ReadBufferSize, s.dispatchPush, s.handleDisconnect); err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

// Disconnect closes the underlying connection.
func (s *Subscriber) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

// Subscribe subscribes to one or more channels, installing handler for
// messages published to any of them. The SUBSCRIBE acknowledgement itself
// is consumed internally, not handed to the caller: Subscriber's contract
// is "handler fires on every message", not request/reply.
func (s *Subscriber) Subscribe(handler func(channel string, payload []byte), channels ...string) error {
	return s.command("SUBSCRIBE", func() {
		s.mu.Lock()
		for _, ch := range channels {
			s.channels[ch] = handler
		}
		s.mu.Unlock()
	}, channels...)
}

// Unsubscribe removes one or more channel subscriptions. With no channels
// given, it unsubscribes from all of them (mirrors the server's own
// no-argument UNSUBSCRIBE semantics).
func (s *Subscriber) Unsubscribe(channels ...string) error {
	return s.command("UNSUBSCRIBE", func() {
		s.mu.Lock()
		if len(channels) == 0 {
			s.channels = make(map[string]func(string, []byte))
		} else {
			for _, ch := range channels {
				delete(s.channels, ch)
			}
		}
		s.mu.Unlock()
	}, channels...)
}

// PSubscribe subscribes to one or more glob patterns. handler is invoked
// with the concrete channel a message was published to, not the pattern
// that matched it (§4.5), the same shape as Subscribe's handler.
func (s *Subscriber) PSubscribe(handler func(channel string, payload []byte), patterns ...string) error {
	return s.command("PSUBSCRIBE", func() {
		s.mu.Lock()
		for _, p := range patterns {
			s.patterns[p] = handler
		}
		s.mu.Unlock()
	}, patterns...)
}

// PUnsubscribe removes one or more pattern subscriptions.
func (s *Subscriber) PUnsubscribe(patterns ...string) error {
	return s.command("PUNSUBSCRIBE", func() {
		s.mu.Lock()
		if len(patterns) == 0 {
			s.patterns = make(map[string]func(string, []byte))
		} else {
			for _, p := range patterns {
				delete(s.patterns, p)
			}
		}
		s.mu.Unlock()
	}, patterns...)
}

func (s *Subscriber) command(verb string, onSent func(), args ...string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrStateDisconnected
	}

	argv := append([]string{verb}, args...)
	conn.Send(toByteArgv(argv))
	if err := conn.Commit(time.Time{}); err != nil {
		return err
	}
	onSent()

	s.mu.Lock()
	s.active = len(s.channels) > 0 || len(s.patterns) > 0
	s.mu.Unlock()
	return nil
}

// Guard enforces the subscriber-mode command restriction (Open Question
// (b)): once a subscription is active, only the pub/sub management verbs
// plus PING/QUIT are accepted. Resolved client-side since RESP carries no
// server-side signal distinguishing "rejected because subscribed" from any
// other error reply.
func (s *Subscriber) Guard(verb string) error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return nil
	}
	if !allowedInSubscriberMode[strings.ToUpper(verb)] {
		return &StateError{Reason: "command " + verb + " not allowed in subscriber mode"}
	}
	return nil
}

// dispatchPush is the Connection's onReply callback. Every subscriber-mode
// push is a RESP array whose first element names the kind.
func (s *Subscriber) dispatchPush(r Reply) {
	elems, err := r.AsArray()
	if err != nil || len(elems) == 0 {
		s.logger.Warnf("redis: malformed subscriber push: %v", r)
		return
	}
	kind, err := elems[0].AsBytes()
	if err != nil {
		return
	}

	switch string(kind) {
	case "message":
		if len(elems) < 3 {
			return
		}
		channel, _ := elems[1].AsBytes()
		payload, _ := elems[2].AsBytes()
		s.mu.Lock()
		handler := s.channels[string(channel)]
		s.mu.Unlock()
		if handler != nil {
			handler(string(channel), payload)
		}

	case "pmessage":
		if len(elems) < 4 {
			return
		}
		pattern, _ := elems[1].AsBytes()
		channel, _ := elems[2].AsBytes()
		payload, _ := elems[3].AsBytes()
		s.mu.Lock()
		handler := s.patterns[string(pattern)]
		s.mu.Unlock()
		if handler != nil {
			handler(string(channel), payload)
		}

	case "subscribe", "unsubscribe", "psubscribe", "punsubscribe":
		// Acknowledgement of a management command already applied
		// optimistically in Subscribe/Unsubscribe/etc.; just count it.
		atomic.AddInt64(&s.acks, 1)
	}
}

func (s *Subscriber) handleDisconnect(err error) {
	s.mu.Lock()
	handler := s.onDisconnect
	s.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func toByteArgv(argv []string) [][]byte {
	out := make([][]byte, len(argv))
	for i, a := range argv {
		out[i] = []byte(a)
	}
	return out
}
