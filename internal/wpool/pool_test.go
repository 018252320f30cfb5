package wpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := New(4)
	defer p.Close()

	var n int64
	const total = 200
	for i := 0; i < total; i++ {
		p.Submit(func() { atomic.AddInt64(&n, 1) })
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&n) == total
	}, time.Second, time.Millisecond)
}

func TestPoolFIFOOrderPerSubmitter(t *testing.T) {
	p := New(1) // single worker: strict FIFO
	defer p.Close()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		p.Submit(func() {
			order = append(order, i)
			if i == 9 {
				close(done)
			}
		})
	}
	<-done

	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

// TestPoolCloseFinishesInFlightButDiscardsQueue checks that Close lets the
// one task a worker already picked up run to completion, but does not drain
// the remaining backlog behind it.
func TestPoolCloseFinishesInFlightButDiscardsQueue(t *testing.T) {
	p := New(1) // single worker: exactly one task is ever in flight

	started := make(chan struct{})
	release := make(chan struct{})
	var n int64
	p.Submit(func() {
		close(started)
		<-release
		atomic.AddInt64(&n, 1)
	})
	<-started // worker has picked this one up before anything else queues

	const queued = 20
	for i := 0; i < queued; i++ {
		p.Submit(func() { atomic.AddInt64(&n, 1) })
	}

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned before the in-flight task was released")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-closed

	assert.EqualValues(t, 1, atomic.LoadInt64(&n))

	// Submit after Close is a silent no-op.
	p.Submit(func() { atomic.AddInt64(&n, 1) })
	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt64(&n))
}
