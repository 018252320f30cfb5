package resp

import "strconv"

// AppendArrayHeader appends a RESP array header ("*N\r\n") for n elements.
func AppendArrayHeader(b []byte, n int) []byte {
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(n), 10)
	return append(b, '\r', '\n')
}

// AppendBulkString appends s as a RESP bulk string.
func AppendBulkString(b []byte, s string) []byte {
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, '\r', '\n')
	b = append(b, s...)
	return append(b, '\r', '\n')
}

// AppendBulkBytes appends p as a RESP bulk string.
func AppendBulkBytes(b []byte, p []byte) []byte {
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(p)), 10)
	b = append(b, '\r', '\n')
	b = append(b, p...)
	return append(b, '\r', '\n')
}

// AppendCommand encodes a full command as a RESP array of bulk strings,
// the wire format every Redis command uses regardless of the reply it
// produces.
func AppendCommand(b []byte, argv ...string) []byte {
	b = AppendArrayHeader(b, len(argv))
	for _, arg := range argv {
		b = AppendBulkString(b, arg)
	}
	return b
}

// AppendCommandBytes is AppendCommand for raw byte arguments: command
// argv elements are byte strings, not necessarily text.
func AppendCommandBytes(b []byte, argv [][]byte) []byte {
	b = AppendArrayHeader(b, len(argv))
	for _, arg := range argv {
		b = AppendBulkBytes(b, arg)
	}
	return b
}

// BuildCommand is a convenience wrapper over AppendCommand for callers that
// don't already hold a reusable buffer.
func BuildCommand(argv ...string) []byte {
	size := 16
	for _, a := range argv {
		size += len(a) + 16
	}
	return AppendCommand(make([]byte, 0, size), argv...)
}
