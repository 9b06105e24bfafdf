package bcibridge

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/usnistgov/bcibridge/openbci"
)

// BoardSetting is one named group of command bytes that configures the board.
type BoardSetting struct {
	Name  string
	Bytes []byte
}

// BoardSettings is an ordered table of settings. Order matters: entries are written
// to the board in table order.
type BoardSettings struct {
	entries []BoardSetting
}

// Number of channel entries in the default table: enough for a Cyton with Daisy.
const defaultSettingsChannels = 16

// DefaultBoardSettings returns the power-on configuration: 16 channels enabled,
// gain 24, normal input, bias and SRB2 connected, plus the SD-card logging flag.
func DefaultBoardSettings() *BoardSettings {
	bs := &BoardSettings{}
	bs.entries = append(bs.entries, BoardSetting{"Number_Channels", []byte{openbci.CmdEnableDaisy}})
	for i := 1; i <= defaultSettingsChannels; i++ {
		cmd := []byte{openbci.CmdChannelBegin, openbci.ChannelCommandChar(i),
			'0', '6', '0', '1', '1', '0', openbci.CmdChannelEnd}
		bs.entries = append(bs.entries, BoardSetting{fmt.Sprintf("channel%d", i), cmd})
	}
	bs.entries = append(bs.entries, BoardSetting{"SD_Card", []byte{' '}})
	return bs
}

// Clone returns an independent copy.
func (bs *BoardSettings) Clone() *BoardSettings {
	out := &BoardSettings{entries: make([]BoardSetting, len(bs.entries))}
	for i, e := range bs.entries {
		out.entries[i] = BoardSetting{e.Name, append([]byte{}, e.Bytes...)}
	}
	return out
}

// Names lists the setting names in order.
func (bs *BoardSettings) Names() []string {
	names := make([]string, len(bs.entries))
	for i, e := range bs.entries {
		names[i] = e.Name
	}
	return names
}

// Get returns the bytes of the named setting (names are not case sensitive).
func (bs *BoardSettings) Get(name string) ([]byte, bool) {
	for _, e := range bs.entries {
		if strings.EqualFold(e.Name, name) {
			return e.Bytes, true
		}
	}
	return nil, false
}

// Set replaces the value of an existing setting.
func (bs *BoardSettings) Set(name string, value []byte) error {
	for i, e := range bs.entries {
		if strings.EqualFold(e.Name, name) {
			bs.entries[i].Bytes = append([]byte{}, value...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSetting, name)
}

// Diff returns, in table order, the bytes of every entry of cur whose value differs from
// the same entry in def. Entries missing from def always differ.
func Diff(def, cur *BoardSettings) []byte {
	var out []byte
	for _, e := range cur.entries {
		if d, ok := def.Get(e.Name); ok && bytes.Equal(d, e.Bytes) {
			continue
		}
		out = append(out, e.Bytes...)
	}
	return out
}
