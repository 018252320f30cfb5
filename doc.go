// Package redis provides a pipelined client for the Redis wire protocol
// (RESP2): command/reply framing, a single-socket FIFO pipeline with
// automatic reconnection, a pub/sub Subscriber, and a consumer-group
// Consumer backed by a worker pool.
//
// See <https://redis.io/topics/protocol> for the wire format this package
// implements, and <https://redis.io/topics/pipelining> for the concurrency
// model Client exposes.
package redis
