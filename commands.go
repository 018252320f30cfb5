package redis

import "strconv"

// Commands.go covers a representative slice of verbs, enough to exercise
// the pipeline end to end; the hundreds of trivial per-command wrappers
// Redis' full command set would need are out of scope — Send/SendBytes
// cover anything not listed here.

// Ping sends PING, optionally with a single message argument.
func (c *Client) Ping(cb func(Reply), message ...string) error {
	if len(message) == 0 {
		return c.Send(cb, "PING")
	}
	return c.Send(cb, "PING", message[0])
}

// Get sends GET key.
func (c *Client) Get(cb func(Reply), key string) error {
	return c.Send(cb, "GET", key)
}

// Set sends SET key value.
func (c *Client) Set(cb func(Reply), key, value string) error {
	return c.Send(cb, "SET", key, value)
}

// Del sends DEL key [key ...].
func (c *Client) Del(cb func(Reply), keys ...string) error {
	return c.Send(cb, append([]string{"DEL"}, keys...)...)
}

// Incr sends INCR key.
func (c *Client) Incr(cb func(Reply), key string) error {
	return c.Send(cb, "INCR", key)
}

// IncrBy sends INCRBY key delta.
func (c *Client) IncrBy(cb func(Reply), key string, delta int64) error {
	return c.Send(cb, "INCRBY", key, strconv.FormatInt(delta, 10))
}

// Expire sends EXPIRE key seconds.
func (c *Client) Expire(cb func(Reply), key string, seconds int64) error {
	return c.Send(cb, "EXPIRE", key, strconv.FormatInt(seconds, 10))
}

// HGet sends HGET key field.
func (c *Client) HGet(cb func(Reply), key, field string) error {
	return c.Send(cb, "HGET", key, field)
}

// HSet sends HSET key field value.
func (c *Client) HSet(cb func(Reply), key, field, value string) error {
	return c.Send(cb, "HSET", key, field, value)
}

// LPush sends LPUSH key value [value ...].
func (c *Client) LPush(cb func(Reply), key string, values ...string) error {
	return c.Send(cb, append([]string{"LPUSH", key}, values...)...)
}

// XAdd sends XADD key id field value [field value ...].
func (c *Client) XAdd(cb func(Reply), key, id string, fieldValues ...string) error {
	return c.Send(cb, append([]string{"XADD", key, id}, fieldValues...)...)
}
