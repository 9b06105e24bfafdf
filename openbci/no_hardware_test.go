package openbci

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readReply collects the board's text until the end-of-transmission marker.
func readReply(t *testing.T, nh *NoHardware) string {
	t.Helper()
	var sb strings.Builder
	for !strings.HasSuffix(sb.String(), EndOfTransmission) {
		n, err := nh.BytesWaiting()
		require.NoError(t, err)
		require.NotZero(t, n, "reply ended early: %q", sb.String())
		c, err := nh.ReadByte()
		require.NoError(t, err)
		sb.WriteByte(c)
	}
	return sb.String()
}

func TestNoHardwareReplies(t *testing.T) {
	nh := NewNoHardware(false)
	defer nh.Close()
	assert.Equal(t, CytonChannels, nh.ChannelCount())
	assert.Equal(t, CytonSampleRate, nh.SampleRate())

	require.NoError(t, nh.WriteByte(CmdSoftReset))
	banner := readReply(t, nh)
	assert.Contains(t, banner, "OpenBCI V3")
	assert.NotContains(t, banner, "Daisy")

	for _, c := range []byte("x3060110X") {
		require.NoError(t, nh.WriteByte(c))
	}
	assert.Equal(t, "Success: Channel set for 3$$$", readReply(t, nh))

	require.NoError(t, nh.WriteByte(CmdQueryRegisters))
	assert.Contains(t, readReply(t, nh), "x3060110X")

	require.NoError(t, nh.WriteByte(TestSignals[3].Command))
	assert.Equal(t, "Success: Configured internal test signal.$$$", readReply(t, nh))
	assert.Equal(t, []byte("vx3060110X?="), nh.Written())
}

func TestNoHardwareDaisy(t *testing.T) {
	nh := NewNoHardware(true)
	defer nh.Close()
	assert.Equal(t, DaisyChannels, nh.ChannelCount())
	assert.Equal(t, DaisySampleRate, nh.SampleRate())
	require.NoError(t, nh.WriteByte(CmdSoftReset))
	assert.Contains(t, readReply(t, nh), "Daisy")
}

func TestNoHardwareStreaming(t *testing.T) {
	for _, daisy := range []bool{false, true} {
		nh := NewNoHardware(daisy)
		nh.packetPeriod = time.Millisecond
		require.NoError(t, nh.WriteByte(TestSignals[1].Command))
		readReply(t, nh)
		require.NoError(t, nh.WriteByte(CmdStartStreaming))
		assert.True(t, nh.IsStreaming())

		fr := NewFrameReader(nh, nh.ChannelCount())
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		for i := 0; i < 5; i++ {
			f, err := fr.ReadFrame(ctx)
			require.NoError(t, err)
			require.Len(t, f.Channels, nh.ChannelCount())
			for _, v := range f.Channels {
				assert.InDelta(t, testAmplitude, v, 1.0)
			}
		}
		cancel()

		require.NoError(t, nh.WriteByte(CmdStopStreaming))
		assert.False(t, nh.IsStreaming())
		require.NoError(t, nh.Close())
		assert.Error(t, nh.Close(), "second Close should error")
		assert.Error(t, nh.WriteByte(CmdStartStreaming))
	}
}

func TestNoHardwareDaisyBanks(t *testing.T) {
	nh := NewNoHardware(true)
	defer nh.Close()
	nh.lock.Lock()
	daisyHalf := nh.nextPacket()
	boardHalf := nh.nextPacket()
	nh.lock.Unlock()

	f, err := DecodePacket(daisyHalf)
	require.NoError(t, err)
	assert.Equal(t, byte(0), f.SampleNumber)
	assert.InDelta(t, nh.signal(8, 0), f.Channels[0], ScaleMicrovolts)

	fr := NewFrameReader(&byteScript{data: append(daisyHalf, boardHalf...)}, DaisyChannels)
	merged, err := fr.ReadFrame(context.Background())
	require.NoError(t, err)
	require.Len(t, merged.Channels, DaisyChannels)
	for ch, v := range merged.Channels {
		assert.InDelta(t, nh.signal(ch, 0), v, ScaleMicrovolts, "channel %d", ch+1)
	}
}
