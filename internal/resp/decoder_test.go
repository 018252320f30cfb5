package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSimpleValues(t *testing.T) {
	d := NewDecoder()
	replies, err := d.Feed([]byte("+OK\r\n-ERR bad\r\n:42\r\n$5\r\nhello\r\n$-1\r\n*-1\r\n*0\r\n"))
	require.NoError(t, err)
	require.Len(t, replies, 7)

	assert.Equal(t, SimpleString, replies[0].Type)
	assert.Equal(t, "OK", string(replies[0].Str))

	assert.Equal(t, Error, replies[1].Type)
	assert.Equal(t, "ERR bad", replies[1].AsError())

	assert.Equal(t, Integer, replies[2].Type)
	assert.EqualValues(t, 42, replies[2].Int)

	assert.Equal(t, BulkString, replies[3].Type)
	assert.Equal(t, "hello", string(replies[3].Str))

	assert.True(t, replies[4].Null)
	assert.True(t, replies[5].Null)
	assert.Equal(t, Array, replies[5].Type)

	assert.Equal(t, Array, replies[6].Type)
	assert.Len(t, replies[6].Elems, 0)
	assert.Equal(t, 0, d.Buffered())
}

func TestDecodeNestedArray(t *testing.T) {
	d := NewDecoder()
	replies, err := d.Feed([]byte("*2\r\n*2\r\n:1\r\n:2\r\n$3\r\nfoo\r\n"))
	require.NoError(t, err)
	require.Len(t, replies, 1)

	top := replies[0]
	require.Equal(t, Array, top.Type)
	require.Len(t, top.Elems, 2)

	nested := top.Elems[0]
	require.Equal(t, Array, nested.Type)
	require.Len(t, nested.Elems, 2)
	assert.EqualValues(t, 1, nested.Elems[0].Int)
	assert.EqualValues(t, 2, nested.Elems[1].Int)

	assert.Equal(t, "foo", string(top.Elems[1].Str))
}

// TestDecodeFragmentedByteAtATime feeds a whole command one byte at a time,
// the worst case for fragmentation, and checks the result is identical to
// feeding it all at once.
func TestDecodeFragmentedByteAtATime(t *testing.T) {
	input := []byte("*3\r\n$3\r\nGET\r\n*2\r\n:7\r\n:8\r\n$-1\r\n")

	d := NewDecoder()
	var got []Reply
	for i := range input {
		replies, err := d.Feed(input[i : i+1])
		require.NoError(t, err)
		got = append(got, replies...)
	}
	require.Len(t, got, 1)

	whole := NewDecoder()
	want, err := whole.Feed(input)
	require.NoError(t, err)
	require.Len(t, want, 1)

	assert.Equal(t, want[0], got[0])
}

// TestDecodeFragmentedAcrossHugeBulkString checks that a large bulk string
// arriving over many small reads resumes rather than re-scanning consumed
// bytes (a regression guard for quadratic re-parsing).
func TestDecodeFragmentedAcrossHugeBulkString(t *testing.T) {
	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	var msg []byte
	msg = append(msg, []byte("$1048576\r\n")...)
	msg = append(msg, payload...)
	msg = append(msg, '\r', '\n')

	d := NewDecoder()
	const chunk = 4096
	var replies []Reply
	for i := 0; i < len(msg); i += chunk {
		end := i + chunk
		if end > len(msg) {
			end = len(msg)
		}
		rs, err := d.Feed(msg[i:end])
		require.NoError(t, err)
		replies = append(replies, rs...)
	}
	require.Len(t, replies, 1)
	assert.Equal(t, payload, replies[0].Str)
}

func TestDecodeProtocolError(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed([]byte("?nope\r\n"))
	assert.ErrorIs(t, err, ErrProtocol)
}

// TestDecodeNegativeLengthOtherThanNullIsProtocolError checks the edge
// policy that only -1 means null: any other negative bulk/array length is
// malformed input, not a null value.
func TestDecodeNegativeLengthOtherThanNullIsProtocolError(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed([]byte("$-5\r\n"))
	assert.ErrorIs(t, err, ErrProtocol)

	d = NewDecoder()
	_, err = d.Feed([]byte("*-2\r\n"))
	assert.ErrorIs(t, err, ErrProtocol)
}
