package bcibridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBoardSettings(t *testing.T) {
	bs := DefaultBoardSettings()
	names := bs.Names()
	require.Len(t, names, 18)
	assert.Equal(t, "Number_Channels", names[0])
	assert.Equal(t, "channel1", names[1])
	assert.Equal(t, "SD_Card", names[17])

	ch1, ok := bs.Get("channel1")
	require.True(t, ok)
	assert.Equal(t, "x1060110X", string(ch1))
	ch9, _ := bs.Get("CHANNEL9")
	assert.Equal(t, "xQ060110X", string(ch9))
	sd, _ := bs.Get("SD_Card")
	assert.Equal(t, " ", string(sd))

	assert.Empty(t, Diff(DefaultBoardSettings(), bs))
}

func TestDiffOrderAndIdempotence(t *testing.T) {
	def := DefaultBoardSettings()
	cur := def.Clone()
	require.NoError(t, cur.Set("SD_Card", []byte("A")))
	require.NoError(t, cur.Set("channel2", []byte("x2160110X")))
	assert.Error(t, cur.Set("channel99", []byte("x")))

	// Table order, not the order of the Set calls.
	assert.Equal(t, "x2160110XA", string(Diff(def, cur)))
	_, ok := def.Get("channel2")
	require.True(t, ok)
	v, _ := def.Get("channel2")
	assert.Equal(t, "x2060110X", string(v), "Clone must not share storage")

	// Once applied, the current settings become the reference and the diff is empty.
	applied := cur.Clone()
	assert.Empty(t, Diff(applied, cur))
	assert.Empty(t, Diff(applied, cur))
}
