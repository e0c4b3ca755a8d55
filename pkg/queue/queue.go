// Package queue provides the bounded frame queues owned by an endpoint.
package queue

import (
	"errors"

	"github.com/rf24node/rf24node-go/pkg/frame"
)

// Queue errors.
var (
	ErrFull  = errors.New("queue full")
	ErrEmpty = errors.New("queue empty")
)

// Queue is a fixed-capacity FIFO of frames backed by a ring buffer. Capacity
// is counted in frames. It is not safe for concurrent use.
type Queue struct {
	items []frame.Frame
	head  int
	count int
}

// New creates a queue holding at most capacity frames.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{items: make([]frame.Frame, capacity)}
}

// Cap returns the capacity.
func (q *Queue) Cap() int { return len(q.items) }

// Len returns the number of queued frames.
func (q *Queue) Len() int { return q.count }

// Free returns the number of unused slots.
func (q *Queue) Free() int { return len(q.items) - q.count }

// Push appends f. It fails with ErrFull instead of growing.
func (q *Queue) Push(f frame.Frame) error {
	if q.count == len(q.items) {
		return ErrFull
	}
	q.items[(q.head+q.count)%len(q.items)] = f
	q.count++
	return nil
}

// PushAll appends all frames or none of them.
func (q *Queue) PushAll(frames []frame.Frame) error {
	if len(frames) > q.Free() {
		return ErrFull
	}
	for _, f := range frames {
		_ = q.Push(f)
	}
	return nil
}

// Peek returns the oldest frame without removing it.
func (q *Queue) Peek() (frame.Frame, bool) {
	if q.count == 0 {
		return frame.Frame{}, false
	}
	return q.items[q.head], true
}

// Pop removes and returns the oldest frame.
func (q *Queue) Pop() (frame.Frame, error) {
	if q.count == 0 {
		return frame.Frame{}, ErrEmpty
	}
	f := q.items[q.head]
	q.items[q.head] = frame.Frame{}
	q.head = (q.head + 1) % len(q.items)
	q.count--
	return f, nil
}

// Clear drops every queued frame.
func (q *Queue) Clear() {
	clear(q.items)
	q.head = 0
	q.count = 0
}
