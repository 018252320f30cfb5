package resp

import (
	"bytes"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	return errors.Errorf("resp/decoder: "+format, args...)
}

var (
	// errNeedMore is not returned by the decoder: an incomplete value is
	// reported through the ok=false result instead, with the buffered
	// bytes retained for the next Feed. It never escapes the package.
	errNeedMore = errors.New("resp/decoder: need more data")

	// ErrProtocol is returned for any malformed RESP input. The decoder
	// cannot resynchronize after this; the connection must be dropped.
	ErrProtocol = newError("protocol violation")
)

// frame is a suspended array decode. Decoding nested arrays pushes a frame
// per nesting level, so an array split across many reads resumes exactly
// where it left off instead of restarting from the top.
//
// This generalizes the register/stack design used by packet-capture RESP
// decoders to a live, byte-at-a-time stream: a frame records how many
// elements remain and what has been collected so far. Bytes are trimmed
// from Decoder.buf the instant a value completes, never re-examined, so a
// huge bulk string or array arriving in many small reads costs no more than
// one pass over the bytes it actually contains.
type frame struct {
	remaining int
	elems     []Reply
}

// Decoder turns a byte stream into a sequence of top-level RESP replies. It
// is safe to Feed arbitrarily small or large chunks; a value that arrives
// split across multiple Feed calls resumes instead of re-parsing.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf   []byte
	stack []*frame
}

// NewDecoder returns a Decoder ready to accept bytes via Feed.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends data to the internal buffer and decodes as many complete
// top-level replies as are available. Leftover, incomplete bytes remain
// buffered for the next call. A non-nil error means the stream is no longer
// parseable and the connection should be closed.
func (d *Decoder) Feed(data []byte) ([]Reply, error) {
	if len(data) > 0 {
		d.buf = append(d.buf, data...)
	}

	var out []Reply
	for {
		rep, ok, err := d.step()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rep)
	}
}

// Buffered reports how many bytes are held waiting for completion of a
// partially-received value. Callers enforcing a max pending-value size
// (guarding against a server advertising an absurd bulk length) poll this.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// step produces at most one top-level Reply from the buffered bytes plus
// whatever is resumable on d.stack. ok is false when more data is needed;
// elements completed so far stay recorded on d.stack with their bytes
// trimmed from d.buf, so the next Feed call picks up where this one stopped.
func (d *Decoder) step() (Reply, bool, error) {
	// Resume any suspended arrays first: the oldest frame on the stack is
	// the outermost array, so completing the top (innermost) frame always
	// folds into its parent before that parent is touched again.
	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		for top.remaining > 0 {
			elem, ok, err := d.decodeOne()
			if err != nil || !ok {
				return Reply{}, false, err
			}
			top.elems = append(top.elems, elem)
			top.remaining--
		}

		rep := Reply{Type: Array, Elems: top.elems}
		d.stack = d.stack[:len(d.stack)-1]

		if len(d.stack) == 0 {
			return rep, true, nil
		}
		parent := d.stack[len(d.stack)-1]
		parent.elems = append(parent.elems, rep)
		parent.remaining--
	}

	return d.decodeOne()
}

// decodeOne decodes a single value at the front of d.buf, trimming consumed
// bytes as it goes. An array whose elements cannot all be read yet pushes a
// frame recording progress and returns ok=false; the frame resumes on the
// next call to step via the loop above.
func (d *Decoder) decodeOne() (Reply, bool, error) {
	if len(d.buf) == 0 {
		return Reply{}, false, nil
	}

	tag := d.buf[0]
	switch tag {
	case '+':
		return d.decodeLine(SimpleString)
	case '-':
		return d.decodeLine(Error)
	case ':':
		return d.decodeInteger()
	case '$':
		return d.decodeBulkString()
	case '*':
		return d.decodeArray()
	default:
		return Reply{}, false, errors.Wrapf(ErrProtocol, "unexpected tag byte %q", tag)
	}
}

// takeLine trims and returns the CRLF-stripped content of the first line in
// d.buf, excluding the leading tag byte. ok is false if no full line is
// buffered yet; d.buf is untouched in that case.
func (d *Decoder) takeLine() (line []byte, ok bool) {
	i := bytes.IndexByte(d.buf, '\n')
	if i < 0 {
		return nil, false
	}
	end := i
	if end > 0 && d.buf[end-1] == '\r' {
		end--
	}
	line = append([]byte(nil), d.buf[1:end]...)
	d.buf = d.buf[i+1:]
	return line, true
}

func (d *Decoder) decodeLine(t Type) (Reply, bool, error) {
	line, ok := d.takeLine()
	if !ok {
		return Reply{}, false, nil
	}
	return Reply{Type: t, Str: line}, true, nil
}

func (d *Decoder) decodeInteger() (Reply, bool, error) {
	line, ok := d.takeLine()
	if !ok {
		return Reply{}, false, nil
	}
	v, ok := parseInt(line)
	if !ok {
		return Reply{}, false, errors.Wrapf(ErrProtocol, "bad integer %q", line)
	}
	return Reply{Type: Integer, Int: v}, true, nil
}

// parseInt is a branch-light decimal parser for RESP's ":"/bulk-length
// lines: ASCII digits with an optional leading '-', no whitespace, no
// exponent. ok is false for anything else, including an empty line.
func parseInt(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	neg := b[0] == '-'
	start := 0
	if neg {
		start = 1
		if len(b) == 1 {
			return 0, false
		}
	}
	var u uint64
	for i := start; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		u = u*10 + uint64(c-'0')
	}
	v := int64(u)
	if neg {
		v = -v
	}
	return v, true
}

func (d *Decoder) decodeBulkString() (Reply, bool, error) {
	save := d.buf
	line, ok := d.takeLine()
	if !ok {
		return Reply{}, false, nil
	}
	n, ok := parseInt(line)
	if !ok {
		return Reply{}, false, errors.Wrapf(ErrProtocol, "bad bulk string length %q", line)
	}
	if n == -1 {
		return Reply{Type: BulkString, Null: true}, true, nil
	}
	if n < 0 {
		return Reply{}, false, errors.Wrapf(ErrProtocol, "negative bulk string length %q", line)
	}
	size := int(n)

	if len(d.buf) < size+2 {
		d.buf = save // not enough payload yet; undo the line consume
		return Reply{}, false, nil
	}
	if d.buf[size] != '\r' || d.buf[size+1] != '\n' {
		return Reply{}, false, errors.Wrap(ErrProtocol, "bulk string missing trailing CRLF")
	}
	payload := append([]byte(nil), d.buf[:size]...)
	d.buf = d.buf[size+2:]
	return Reply{Type: BulkString, Str: payload}, true, nil
}

func (d *Decoder) decodeArray() (Reply, bool, error) {
	line, ok := d.takeLine()
	if !ok {
		return Reply{}, false, nil
	}
	n, ok := parseInt(line)
	if !ok {
		return Reply{}, false, errors.Wrapf(ErrProtocol, "bad array length %q", line)
	}
	if n == -1 {
		return Reply{Type: Array, Null: true}, true, nil
	}
	if n < 0 {
		return Reply{}, false, errors.Wrapf(ErrProtocol, "negative array length %q", line)
	}
	size := int(n)
	if size == 0 {
		return Reply{Type: Array, Elems: []Reply{}}, true, nil
	}

	d.stack = append(d.stack, &frame{remaining: size, elems: make([]Reply, 0, size)})
	top := d.stack[len(d.stack)-1]
	for top.remaining > 0 {
		elem, ok, err := d.decodeOne()
		if err != nil {
			return Reply{}, false, err
		}
		if !ok {
			// Header already trimmed; leave the frame on the stack so
			// step's resume loop continues this array next time.
			return Reply{}, false, nil
		}
		top.elems = append(top.elems, elem)
		top.remaining--
	}

	rep := Reply{Type: Array, Elems: top.elems}
	d.stack = d.stack[:len(d.stack)-1]
	return rep, true, nil
}
