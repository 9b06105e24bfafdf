package bcibridge

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender stores every multipart message.
type recordingSender struct {
	sync.Mutex
	messages [][]any
}

func (rs *recordingSender) SendMessage(parts ...any) (int, error) {
	rs.Lock()
	defer rs.Unlock()
	rs.messages = append(rs.messages, parts)
	return len(parts), nil
}

func (rs *recordingSender) tags() []string {
	rs.Lock()
	defer rs.Unlock()
	var tags []string
	for _, m := range rs.messages {
		tags = append(tags, m[0].(string))
	}
	return tags
}

func TestPublishUpdates(t *testing.T) {
	sender := &recordingSender{}
	messages := make(chan ClientUpdate)
	done := make(chan struct{})
	go func() {
		publishUpdates(sender, messages, nil, time.Hour)
		close(done)
	}()

	messages <- ClientUpdate{TagStatus, StatusMessage{State: "Streaming", Active: true, ChannelCount: 8}}
	messages <- ClientUpdate{TagMontage, MontageMessage{SourceID: "s", Labels: []string{"O1", "O2"}}}
	close(messages)
	<-done

	require.Len(t, sender.messages, 2)
	assert.Equal(t, []string{TagStatus, TagMontage}, sender.tags())
	var status StatusMessage
	require.NoError(t, json.Unmarshal(sender.messages[0][1].([]byte), &status))
	assert.Equal(t, "Streaming", status.State)
	assert.True(t, status.Active)
	assert.Equal(t, 8, status.ChannelCount)
}

func TestPublishUpdatesHeartbeat(t *testing.T) {
	sender := &recordingSender{}
	abort := make(chan struct{})
	done := make(chan struct{})
	go func() {
		publishUpdates(sender, make(chan ClientUpdate), abort, time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool { return len(sender.tags()) >= 2 }, time.Second, time.Millisecond)
	close(abort)
	<-done
	for _, tag := range sender.tags() {
		assert.Equal(t, TagAlive, tag)
	}
}
