package redis

import (
	"errors"
	"fmt"
)

// ErrClosed is returned to a Consumer request still awaiting its reply when
// the Consumer is closed.
var ErrClosed = errors.New("redis: client closed")

// ErrStateDisconnected rejects command submission while the client holds no
// connection and reconnect policy has given up (or was never started). It
// is a *StateError, so errors.As with a *StateError target matches it.
var ErrStateDisconnected error = &StateError{Reason: "not connected"}

// TransportError wraps an I/O failure surfaced by the transport layer: a
// failed read, write, or dial.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("redis: transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NetworkError is delivered to pending callbacks when the reconnect state
// machine exhausts its retry budget. It is a reply-carrying error, not a
// panic or a process-fatal condition: the Testable property is that it
// fires exactly once per pending callback.
type NetworkError struct {
	Reason string
}

func (e *NetworkError) Error() string {
	return "redis: network error: " + e.Reason
}

// ServerError is a "-…" reply frame: data returned by the server, never
// thrown by the codec. It satisfies error so it can be returned from
// accessor methods, but it is not a protocol failure.
type ServerError string

func (e ServerError) Error() string {
	return fmt.Sprintf("redis: server error %q", string(e))
}

// Prefix returns the first word of the error text (its conventional kind,
// e.g. "WRONGTYPE", "NOAUTH").
func (e ServerError) Prefix() string {
	s := string(e)
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}

// TypeError signals a caller accessing a Reply through the wrong accessor
// (e.g. Integer() on a bulk string). It is a caller bug, surfaced
// immediately, and never affects connection state.
type TypeError struct {
	Want, Got string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("redis: reply type error: want %s, got %s", e.Want, e.Got)
}

// StateError signals a command rejected client-side because of the
// connection's current mode: sent while disconnected, or a command other
// than SUBSCRIBE/UNSUBSCRIBE/PSUBSCRIBE/PUNSUBSCRIBE/PING/QUIT issued while
// in subscriber mode.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "redis: " + e.Reason
}

// ErrProtocol marks the codec's stream as unrecoverable: the byte stream no
// longer parses as RESP, and the connection holding it must disconnect
// rather than attempt to resynchronize. Connection wraps the internal
// codec's parse error with this sentinel so callers can use errors.Is
// without importing the internal codec package.
var ErrProtocol = errors.New("redis: protocol violation")
