package bcibridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StreamConfig holds the fixed parts of every StreamDescriptor.
type StreamConfig struct {
	Name         string   `mapstructure:"name"`
	Type         string   `mapstructure:"type"`
	Format       string   `mapstructure:"format"`
	Manufacturer string   `mapstructure:"manufacturer"`
	Labels       []string `mapstructure:"labels"`
}

// LinkConfig says which board to open.
type LinkConfig struct {
	Port  string `mapstructure:"port"`
	Baud  int    `mapstructure:"baud"`
	Dummy bool   `mapstructure:"dummy"`
	Daisy bool   `mapstructure:"daisy"` // only for the dummy board
}

// TimingConfig holds the pacing and settle delays of the serial protocol.
type TimingConfig struct {
	CharDelay     time.Duration `mapstructure:"char_delay"`     // after each relayed character
	SettleDelay   time.Duration `mapstructure:"settle_delay"`   // before draining a response
	ByteDelay     time.Duration `mapstructure:"byte_delay"`     // after each drained byte
	SettingsDelay time.Duration `mapstructure:"settings_delay"` // after each settings byte
}

// SinkConfig selects where samples are published.
type SinkConfig struct {
	Backend  string `mapstructure:"backend"` // "zmq" or "websocket"
	BasePort int    `mapstructure:"base_port"`
}

// LedgerConfig controls the optional ClickHouse run ledger.
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Config is the whole bridge configuration.
type Config struct {
	Verbose       bool              `mapstructure:"verbose"`
	Stream        StreamConfig      `mapstructure:"stream"`
	Link          LinkConfig        `mapstructure:"link"`
	Timing        TimingConfig      `mapstructure:"timing"`
	Sink          SinkConfig        `mapstructure:"sink"`
	Ledger        LedgerConfig      `mapstructure:"ledger"`
	BoardSettings map[string]string `mapstructure:"board_settings"`
}

// Sink backends
const (
	SinkZMQ       = "zmq"
	SinkWebSocket = "websocket"
)

// SetConfigDefaults registers the default value of every key with v.
func SetConfigDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("stream.name", "openbci_eeg")
	v.SetDefault("stream.type", "EEG")
	v.SetDefault("stream.format", "float32")
	v.SetDefault("stream.manufacturer", "OpenBCI Inc.")
	v.SetDefault("link.port", "")
	v.SetDefault("link.baud", 115200)
	v.SetDefault("link.dummy", false)
	v.SetDefault("link.daisy", false)
	v.SetDefault("timing.char_delay", 100*time.Millisecond)
	v.SetDefault("timing.settle_delay", 100*time.Millisecond)
	v.SetDefault("timing.byte_delay", time.Millisecond)
	v.SetDefault("timing.settings_delay", 200*time.Millisecond)
	v.SetDefault("sink.backend", SinkZMQ)
	v.SetDefault("sink.base_port", 5600)
	v.SetDefault("ledger.enabled", false)
	v.SetDefault("ledger.addr", "localhost:9000")
}

// LoadConfig reads the configuration held by v, after filling in defaults.
func LoadConfig(v *viper.Viper) (Config, error) {
	SetConfigDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Sink.Backend = strings.ToLower(cfg.Sink.Backend)
	switch cfg.Sink.Backend {
	case SinkZMQ, SinkWebSocket:
	default:
		return cfg, fmt.Errorf("sink.backend=%q, must be one of (%s,%s)", cfg.Sink.Backend,
			SinkZMQ, SinkWebSocket)
	}
	if cfg.Sink.BasePort <= 0 || cfg.Sink.BasePort > 65534 {
		return cfg, fmt.Errorf("sink.base_port=%d is out of range", cfg.Sink.BasePort)
	}
	setPortnumbers(cfg.Sink.BasePort)
	SetVerbose(cfg.Verbose)
	return cfg, nil
}
