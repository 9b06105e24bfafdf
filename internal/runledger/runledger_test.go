package runledger

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDummyConnection(t *testing.T) {
	db := Dummy()
	assert.False(t, db.IsConnected())
	assert.ErrorIs(t, db.Err(), ErrNotConnected)

	// Records are silently discarded and nothing is waited for.
	db.RecordPublication(&PublicationMessage{SourceID: "x"})
	db.RecordPublication(nil)
	db.Wait()

	var missing *Connection
	assert.False(t, missing.IsConnected())
	assert.Error(t, missing.Err())
}

func TestSessionMessage(t *testing.T) {
	s := NewSessionMessage("1.2.3", "abc123", "dummy")
	assert.Len(t, s.ID, 26)
	assert.NotEmpty(t, s.Hostname)
	assert.NotEmpty(t, s.GoVersion)
	assert.Positive(t, s.CPUs)
	assert.Equal(t, "dummy", s.Device)
	assert.True(t, s.End.IsZero())
	assert.Empty(t, formatTime(s.End))

	other := NewSessionMessage("1.2.3", "abc123", "dummy")
	assert.NotEqual(t, s.ID, other.ID)
}

func TestPublicationFormatting(t *testing.T) {
	m := &PublicationMessage{Labels: []string{"O1", "O2", "Cz"}}
	assert.Equal(t, "O1,O2,Cz", m.labelList())

	when := time.Date(2024, 3, 5, 14, 7, 9, 123456000, time.UTC)
	assert.Equal(t, "2024-03-05 14:07:09.123456", formatTime(when))
}

func TestPublicationsStoredInOrder(t *testing.T) {
	var lock sync.Mutex
	var stored []string
	release := make(chan struct{})
	db := &Connection{}
	db.startQueue(func(m *PublicationMessage) {
		<-release
		lock.Lock()
		defer lock.Unlock()
		stored = append(stored, m.SourceID)
	})
	abort := make(chan struct{})
	db.Add(1)
	go db.handleConnection(abort)

	// The store is blocked, so these pile up in the queue and none may be lost.
	var want []string
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("src%02d", i)
		want = append(want, id)
		db.RecordPublication(&PublicationMessage{SourceID: id})
	}
	close(abort)
	close(release)
	db.Wait()
	assert.Equal(t, want, stored)

	// After the abort, records are dropped without blocking.
	done := make(chan struct{})
	go func() {
		db.RecordPublication(&PublicationMessage{SourceID: "late"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecordPublication blocked after the ledger was aborted")
	}
	assert.Len(t, stored, 50)
}

func TestPingServerUnreachable(t *testing.T) {
	var out bytes.Buffer
	err := PingServer("127.0.0.1:1", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, out.String())
}
