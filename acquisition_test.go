package bcibridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usnistgov/bcibridge/openbci"
)

func TestAcquisitionForwardsFrames(t *testing.T) {
	src := newScriptedFrames()
	pub := &memPublication{md: StreamMetadata{StreamDescriptor: StreamDescriptor{ChannelCount: 2}}}
	acq := StartAcquisition(src, pub)
	assert.True(t, acq.Running())

	for i := 0; i < 3; i++ {
		src.frames <- &openbci.Frame{SampleNumber: byte(i), Channels: []float32{float32(i), 0}}
	}
	assert.Eventually(t, func() bool { return acq.Frames() == 3 }, time.Second, time.Millisecond)

	require.NoError(t, acq.Stop())
	require.NoError(t, acq.Stop())
	assert.False(t, acq.Running())
	assert.NoError(t, acq.Err())
	assert.Equal(t, 3, pub.Samples())
}

func TestAcquisitionReadFailure(t *testing.T) {
	src := newScriptedFrames()
	acq := StartAcquisition(src, &memPublication{})
	broken := errors.New("serial port vanished")
	src.fail <- broken
	<-acq.Done()
	assert.ErrorIs(t, acq.Err(), broken)
	assert.ErrorIs(t, acq.Stop(), broken)
}

func TestAcquisitionPushFailure(t *testing.T) {
	src := newScriptedFrames()
	pub := &memPublication{}
	require.NoError(t, pub.Close())
	acq := StartAcquisition(src, pub)
	src.frames <- &openbci.Frame{Channels: []float32{1}}
	select {
	case <-acq.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("acquisition did not end after a failed push")
	}
	assert.ErrorIs(t, acq.Err(), ErrSinkUnavailable)
	assert.Zero(t, acq.Frames())
}

// stubbornSource ignores cancellation until released.
type stubbornSource struct{ release chan struct{} }

func (s *stubbornSource) ReadFrame(ctx context.Context) (*openbci.Frame, error) {
	<-s.release
	return nil, ctx.Err()
}

func TestAcquisitionStopWaits(t *testing.T) {
	src := &stubbornSource{release: make(chan struct{})}
	acq := StartAcquisition(src, &memPublication{})
	stopped := make(chan struct{})
	go func() {
		acq.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned before the goroutine finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(src.release)
	<-stopped
	assert.NoError(t, acq.Err())
}
