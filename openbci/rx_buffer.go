package openbci

import (
	"io"
	"sync"
)

// rxBuffer holds bytes received from the board until they are read. Producers append
// from their own goroutine; readers either poll len() or block in readByte().
type rxBuffer struct {
	mu     sync.Mutex
	ready  *sync.Cond
	data   []byte
	closed bool
	err    error
}

func newRxBuffer() *rxBuffer {
	b := &rxBuffer{}
	b.ready = sync.NewCond(&b.mu)
	return b
}

func (b *rxBuffer) write(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.data = append(b.data, p...)
	b.ready.Broadcast()
}

func (b *rxBuffer) writeString(s string) {
	b.write([]byte(s))
}

// closeWithError wakes blocked readers. Bytes already buffered can still be read; after
// that, readByte returns err (io.EOF if err is nil).
func (b *rxBuffer) closeWithError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if err == nil {
		err = io.EOF
	}
	b.closed = true
	b.err = err
	b.ready.Broadcast()
}

func (b *rxBuffer) len() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 && b.closed {
		return 0, b.err
	}
	return len(b.data), nil
}

func (b *rxBuffer) readByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.data) == 0 && !b.closed {
		b.ready.Wait()
	}
	if len(b.data) == 0 {
		return 0, b.err
	}
	c := b.data[0]
	b.data = b.data[1:]
	return c, nil
}

// reset discards unread bytes.
func (b *rxBuffer) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
}
