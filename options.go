package redis

import (
	"net"
	"path/filepath"
	"time"

	"github.com/kvgo/respipe/log"
)

// ReconnectPolicy governs automatic re-establishment after a connection
// drop (§4.4 state machine).
type ReconnectPolicy struct {
	// MaxAttempts bounds reconnect attempts after a drop. 0 disables
	// auto-reconnect entirely (the client goes straight to Disconnected).
	// -1 means unlimited attempts.
	MaxAttempts int

	// RetryInterval is the delay between reconnect attempts.
	RetryInterval time.Duration
}

// DefaultReconnectPolicy retries every 100ms, unlimited attempts — the
// teacher's own reconnectDelay constant, generalized into policy.
var DefaultReconnectPolicy = ReconnectPolicy{MaxAttempts: -1, RetryInterval: 100 * time.Millisecond}

// DisableReconnect is a ready-made policy for Options.Reconnect that turns
// auto-reconnect off entirely: a dropped connection goes straight to
// Disconnected with every pending callback failed.
var DisableReconnect = &ReconnectPolicy{MaxAttempts: 0}

// Options configures a Client, Subscriber, or Consumer at construction.
type Options struct {
	// Addr is host:port, or an absolute filesystem path for a Unix domain
	// socket. Empty defaults to "127.0.0.1:6379".
	Addr string

	// ConnectTimeout bounds TCP/Unix dial duration. 0 means infinite.
	ConnectTimeout time.Duration

	// CommandTimeout, when nonzero, is the write deadline applied to each
	// Client.Commit; a write that misses it fails with a TransportError
	// whose underlying net.Error reports Timeout() true. It does not bound
	// the wait for replies and does not trigger a reconnect.
	CommandTimeout time.Duration

	// ReadBufferSize is the size hint passed to the transport's read
	// loop. Default 4096 (matches cpp_redis's read buffer).
	ReadBufferSize int

	// Reconnect governs automatic reconnection. Nil means
	// DefaultReconnectPolicy. A non-nil policy is honored exactly as given
	// — including ReconnectPolicy{MaxAttempts: 0} to disable reconnect
	// outright (see DisableReconnect) — since that is otherwise
	// indistinguishable from an unset field. A Subscriber ignores it and
	// never reconnects.
	Reconnect *ReconnectPolicy

	// Password, when non-empty, is sent via AUTH immediately after every
	// successful (re)connect, before any user command or SELECT. Only
	// Client (and the Client inside a Consumer) sends it; a Subscriber
	// sends neither AUTH nor SELECT.
	Password string

	// DB is replayed via SELECT after AUTH on every successful
	// (re)connect, the same as Password.
	DB int64

	// Logger receives diagnostic output. Nil means silent.
	Logger *log.Logger
}

func (o Options) normalized() Options {
	o.Addr = normalizeAddr(o.Addr)
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = 4096
	}
	if o.Reconnect == nil {
		policy := DefaultReconnectPolicy
		o.Reconnect = &policy
	}
	return o
}

// ConsumerOptions configures a Consumer (§6): session identity plus poll
// and concurrency tuning. The group itself is named per-registration via
// Consumer.Subscribe, since one Consumer can service several groups.
type ConsumerOptions struct {
	// SessionName is the consumer's identity within whichever group it
	// joins. A random name is generated if empty.
	SessionName string

	// BlockMillis is the BLOCK argument to XREADGROUP. 0 means
	// non-blocking (per the Open Question resolved in DESIGN.md); use
	// BlockForever for an infinite block.
	BlockMillis int

	// MaxConcurrency sizes the per-consumer worker pool. Default 1,
	// matching cpp_redis's per-stream dispatch_queue.
	MaxConcurrency int

	// Count limits entries fetched per XREADGROUP call. 0 means no
	// COUNT argument (server default).
	Count int

	// HighWaterMark/LowWaterMark bound worker pool depth for
	// backpressure: the poll loop pauses once Depth() > HighWaterMark
	// and resumes once it drops to LowWaterMark or below.
	HighWaterMark int
	LowWaterMark  int
}

// BlockForever is the explicit sentinel for "block indefinitely" on
// XREADGROUP, distinct from BlockMillis==0 meaning non-blocking. See
// DESIGN.md's resolution of spec Open Question (a).
const BlockForever = -1

// normalizeAddr fills in the default host and port the same way Redis'
// own client tools do: empty or partial host:port pairs default to
// localhost:6379, and a leading-slash path is treated as a Unix domain
// socket and cleaned rather than split as host:port.
func normalizeAddr(s string) string {
	if isUnixSocketPath(s) {
		return filepath.Clean(s)
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host = s
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return net.JoinHostPort(host, port)
}

func isUnixSocketPath(s string) bool {
	return len(s) != 0 && s[0] == '/'
}

func (o ConsumerOptions) normalized() ConsumerOptions {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 1
	}
	if o.HighWaterMark <= 0 {
		o.HighWaterMark = 1000
	}
	if o.LowWaterMark <= 0 || o.LowWaterMark > o.HighWaterMark {
		o.LowWaterMark = o.HighWaterMark / 2
	}
	return o
}
