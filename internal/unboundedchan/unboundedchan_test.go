package unboundedchan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnboundedChannel(t *testing.T) {
	unboundedQueue := NewUnboundedChannel[int]()

	// Send all integers [0, 19] without any receiver running.
	max := 20
	ch := unboundedQueue.In()
	for i := 0; i < max; i++ {
		ch <- i
	}
	unboundedQueue.Close()
	unboundedQueue.Close()

	// Receive in order.
	next := 0
	for d := range unboundedQueue.Out() {
		if d != next {
			t.Errorf("UnboundedQueue received %d, want %d", d, next)
		}
		next++
	}
	if next != max {
		t.Errorf("UnboundedQueue delivered %d values, want %d", next, max)
	}
	assert.Zero(t, unboundedQueue.Len())
}

func TestUnboundedChannelLen(t *testing.T) {
	uc := NewUnboundedChannel[string]()
	defer uc.Close()
	uc.In() <- "a"
	uc.In() <- "b"
	// The second send is accepted only after the first is queued.
	assert.GreaterOrEqual(t, uc.Len(), 1)
	assert.Equal(t, "a", <-uc.Out())
	assert.Equal(t, "b", <-uc.Out())
	assert.Eventually(t, func() bool { return uc.Len() == 0 }, time.Second, time.Millisecond)
}
