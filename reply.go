package redis

import (
	"strconv"

	"github.com/kvgo/respipe/internal/resp"
)

// Reply is the public tagged-value view of a decoded RESP value: one of
// simple string, error, integer, bulk string, or array. Nullness of a bulk
// string or array is distinguishable from emptiness. Replies are immutable
// once built.
type Reply struct {
	raw resp.Reply

	// netErr, when set, marks this Reply as the synthetic product of
	// connection failure rather than a decoded "-…" frame. Err() returns
	// it directly so callers can tell a NetworkError (never reached the
	// server, or its reply was lost) apart from a ServerError (the server
	// actually replied with an error).
	netErr *NetworkError
}

func newReply(r resp.Reply) Reply { return Reply{raw: r} }

// networkErrorReply builds the synthetic reply delivered to pending
// callbacks when reconnection is exhausted (§4.4) or the client is torn
// down with commands still in flight. raw keeps it reporting as an error
// reply for IsError/String; Err() returns the typed NetworkError.
func networkErrorReply(reason string) Reply {
	return Reply{
		raw:    resp.Reply{Type: resp.Error, Str: []byte("network error: " + reason)},
		netErr: &NetworkError{Reason: reason},
	}
}

func (r Reply) IsSimpleString() bool { return r.raw.Type == resp.SimpleString }
func (r Reply) IsError() bool        { return r.raw.Type == resp.Error }
func (r Reply) IsInteger() bool      { return r.raw.Type == resp.Integer }
func (r Reply) IsBulkString() bool   { return r.raw.Type == resp.BulkString }
func (r Reply) IsArray() bool        { return r.raw.Type == resp.Array }
func (r Reply) IsNull() bool         { return r.raw.Null }

// AsString returns the text of a simple string or error reply.
func (r Reply) AsString() (string, error) {
	switch r.raw.Type {
	case resp.SimpleString, resp.Error:
		return string(r.raw.Str), nil
	default:
		return "", &TypeError{Want: "simple string", Got: r.raw.Type.String()}
	}
}

// AsBytes returns the payload of a (non-null) bulk string reply.
func (r Reply) AsBytes() ([]byte, error) {
	if r.raw.Type != resp.BulkString {
		return nil, &TypeError{Want: "bulk string", Got: r.raw.Type.String()}
	}
	if r.raw.Null {
		return nil, nil
	}
	return r.raw.Str, nil
}

// AsInteger returns the value of an integer reply.
func (r Reply) AsInteger() (int64, error) {
	if r.raw.Type != resp.Integer {
		return 0, &TypeError{Want: "integer", Got: r.raw.Type.String()}
	}
	return r.raw.Int, nil
}

// AsArray returns the elements of a (non-null) array reply.
func (r Reply) AsArray() ([]Reply, error) {
	if r.raw.Type != resp.Array {
		return nil, &TypeError{Want: "array", Got: r.raw.Type.String()}
	}
	if r.raw.Null {
		return nil, nil
	}
	out := make([]Reply, len(r.raw.Elems))
	for i, e := range r.raw.Elems {
		out[i] = newReply(e)
	}
	return out, nil
}

// Err returns a non-nil error when the reply represents a failure: a
// *NetworkError if the command never got a real reply because the
// connection was lost, or a ServerError when the reply is a genuine "-…"
// frame. Server errors are data, not codec failures: callers decide how to
// treat them.
func (r Reply) Err() error {
	if r.netErr != nil {
		return r.netErr
	}
	if r.raw.Type != resp.Error {
		return nil
	}
	return ServerError(r.raw.Str)
}

// String implements fmt.Stringer for debugging/log output.
func (r Reply) String() string {
	switch r.raw.Type {
	case resp.SimpleString:
		return "+" + string(r.raw.Str)
	case resp.Error:
		return "-" + string(r.raw.Str)
	case resp.Integer:
		return ":" + strconv.FormatInt(r.raw.Int, 10)
	case resp.BulkString:
		if r.raw.Null {
			return "$-1"
		}
		return string(r.raw.Str)
	case resp.Array:
		if r.raw.Null {
			return "*-1"
		}
		s := "["
		for i, e := range r.raw.Elems {
			if i > 0 {
				s += " "
			}
			s += newReply(e).String()
		}
		return s + "]"
	default:
		return "<invalid reply>"
	}
}
