package bcibridge

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "openbci_eeg", cfg.Stream.Name)
	assert.Equal(t, "EEG", cfg.Stream.Type)
	assert.Equal(t, "float32", cfg.Stream.Format)
	assert.Equal(t, 115200, cfg.Link.Baud)
	assert.Equal(t, 100*time.Millisecond, cfg.Timing.CharDelay)
	assert.Equal(t, time.Millisecond, cfg.Timing.ByteDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.Timing.SettingsDelay)
	assert.Equal(t, SinkZMQ, cfg.Sink.Backend)
	assert.Equal(t, 5600, Ports.Stream)
	assert.Equal(t, 5601, Ports.Status)
	assert.False(t, cfg.Ledger.Enabled)
}

func TestLoadConfigYAML(t *testing.T) {
	yaml := `
verbose: true
stream:
  name: lab_eeg
  labels: [C3, C4, P3, P4]
timing:
  char_delay: 5ms
  settle_delay: 0s
sink:
  backend: WebSocket
  base_port: 6000
board_settings:
  channel3: x3160110X
`
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	defer LoadConfig(viper.New()) // restore the global ports and log level

	assert.True(t, cfg.Verbose)
	assert.Equal(t, "lab_eeg", cfg.Stream.Name)
	assert.Equal(t, "EEG", cfg.Stream.Type)
	assert.Equal(t, []string{"C3", "C4", "P3", "P4"}, cfg.Stream.Labels)
	assert.Equal(t, 5*time.Millisecond, cfg.Timing.CharDelay)
	assert.Equal(t, time.Duration(0), cfg.Timing.SettleDelay)
	assert.Equal(t, SinkWebSocket, cfg.Sink.Backend)
	assert.Equal(t, 6001, Ports.Status)
	assert.Equal(t, "x3160110X", cfg.BoardSettings["channel3"])
}

func TestLoadConfigErrors(t *testing.T) {
	v := viper.New()
	v.Set("sink.backend", "carrier-pigeon")
	_, err := LoadConfig(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("sink.base_port", -1)
	_, err = LoadConfig(v)
	assert.Error(t, err)
}
