// Package unboundedchan provides a FIFO queue fed and drained through channels, whose
// sender never waits on a slow receiver.
package unboundedchan

import (
	"sync"
	"sync/atomic"
)

// UnboundedChannel represents an unbounded queue, but data are entered and removed via channels.
// Beware! You almost certainly want T to be a small value type; use pointers for large objects.
type UnboundedChannel[T any] struct {
	in        chan T
	out       chan T
	queue     []T
	queued    atomic.Int64
	closeOnce sync.Once
}

// NewUnboundedChannel creates and initializes an UnboundedChannel
func NewUnboundedChannel[T any]() *UnboundedChannel[T] {
	uc := &UnboundedChannel[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go uc.run()
	return uc
}

func (uc *UnboundedChannel[T]) run() {
	defer close(uc.out)
	for {
		if len(uc.queue) == 0 {
			val, ok := <-uc.in
			if !ok {
				return
			}
			uc.push(val)
			continue
		}
		select {
		case uc.out <- uc.queue[0]:
			uc.pop()
		case val, ok := <-uc.in:
			if !ok {
				// Input closed: deliver what is queued, then close the output.
				for len(uc.queue) > 0 {
					uc.out <- uc.queue[0]
					uc.pop()
				}
				return
			}
			uc.push(val)
		}
	}
}

func (uc *UnboundedChannel[T]) push(val T) {
	uc.queue = append(uc.queue, val)
	uc.queued.Add(1)
}

func (uc *UnboundedChannel[T]) pop() {
	var zero T
	uc.queue[0] = zero
	uc.queue = uc.queue[1:]
	uc.queued.Add(-1)
}

// In returns the input channel for sending data. Use Close rather than closing it
// directly when more than one goroutine might close it.
func (uc *UnboundedChannel[T]) In() chan<- T {
	return uc.in
}

// Out returns the output channel for receiving data. It is closed after Close, once
// every queued value has been received.
func (uc *UnboundedChannel[T]) Out() <-chan T {
	return uc.out
}

// Len is the number of values accepted but not yet received.
func (uc *UnboundedChannel[T]) Len() int {
	return int(uc.queued.Load())
}

// Close closes the input. It is safe to call more than once.
func (uc *UnboundedChannel[T]) Close() {
	uc.closeOnce.Do(func() { close(uc.in) })
}
