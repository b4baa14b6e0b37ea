// Package queue buffers invocations issued while no remote peer is ready.
//
// Each entry fires exactly once: with the peer when Flush runs, or with nil
// arguments when its deadline elapses first. Whichever path removes the
// entry from the queue wins.
package queue

import (
	"sync"
	"time"

	"github.com/upnode-go/upnode/pkg/rpc"
)

// Callback receives the ready peer and its channel, or (nil, nil) when the
// peer did not become available before the entry's deadline.
type Callback func(remote *rpc.Remote, ch *rpc.Channel)

type entry struct {
	cb    Callback
	timer *time.Timer
}

// Queue is an ordered set of pending callbacks. The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	entries []*entry
}

// Push appends a callback that waits indefinitely.
func (q *Queue) Push(cb Callback) {
	q.PushTimeout(0, cb)
}

// PushTimeout appends a callback. If timeout is positive and the entry is
// still queued when it elapses, the entry is removed and cb is called with
// nil arguments.
func (q *Queue) PushTimeout(timeout time.Duration, cb Callback) {
	if cb == nil {
		return
	}
	e := &entry{cb: cb}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	if timeout > 0 {
		e.timer = time.AfterFunc(timeout, func() { q.expire(e) })
	}
}

// Flush removes every queued entry and calls each in insertion order with
// remote and ch. Callbacks run outside the lock; entries they push are queued
// for the next flush.
func (q *Queue) Flush(remote *rpc.Remote, ch *rpc.Channel) int {
	batch := q.Drain()
	for _, cb := range batch {
		cb(remote, ch)
	}
	return len(batch)
}

// Drain removes every queued entry and returns the callbacks in insertion
// order. Their deadlines are cancelled, so the caller owns firing them.
func (q *Queue) Drain() []Callback {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	batch := make([]Callback, len(q.entries))
	for i, e := range q.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		batch[i] = e.cb
	}
	q.entries = nil
	return batch
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) expire(e *entry) {
	if !q.remove(e) {
		return
	}
	e.cb(nil, nil)
}

// remove deletes e and reports whether it was still queued.
func (q *Queue) remove(e *entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cur := range q.entries {
		if cur == e {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}
