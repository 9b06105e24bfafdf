// Package openbci talks to an OpenBCI Cyton board (with or without the Daisy module)
// over a serial port, or to a software stand-in for one.
//
// Both Board and NoHardware expose the same byte-level link: WriteByte, a non-blocking
// BytesWaiting, a blocking ReadByte, the board's channel count and sample rate, and Close.
// FrameReader turns the link's byte stream into scaled sample frames.
package openbci

import "errors"

// ErrDeviceUnavailable means no board could be opened.
var ErrDeviceUnavailable = errors.New("device unavailable")

// Single-character board commands.
const (
	CmdStartStreaming  byte = 'b'
	CmdStopStreaming   byte = 's'
	CmdSoftReset       byte = 'v'
	CmdDefaultSettings byte = 'd'
	CmdEnableDaisy     byte = 'C'
	CmdDisableDaisy    byte = 'c'
	CmdQueryRegisters  byte = '?'
	CmdChannelBegin    byte = 'x'
	CmdChannelEnd      byte = 'X'
)

// EndOfTransmission terminates every text response of the board.
const EndOfTransmission = "$$$"

// Channel counts and sample rates reported by the two board configurations.
const (
	CytonChannels   = 8
	CytonSampleRate = 250.0
	DaisyChannels   = 16
	DaisySampleRate = 125.0
)

// TestSignal is an internal test pattern of the ADS1299.
type TestSignal struct {
	Command     byte
	Description string
}

// TestSignals maps test-signal ids to board commands.
var TestSignals = map[int]TestSignal{
	0: {'0', "Connecting all pins to ground"},
	1: {'p', "Connecting all pins to Vcc"},
	2: {'-', "Connecting pins to low frequency 1x amp signal"},
	3: {'=', "Connecting pins to high frequency 1x amp signal"},
	4: {'[', "Connecting pins to low frequency 2x amp signal"},
	5: {']', "Connecting pins to high frequency 2x amp signal"},
}

// ChannelCommandChar is the character that addresses channel n (1-based) in channel
// settings commands: 1..8 on the Cyton, Q W E R T Y U I on the Daisy.
func ChannelCommandChar(n int) byte {
	const daisyChars = "QWERTYUI"
	if n >= 1 && n <= 8 {
		return byte('0' + n)
	}
	if n >= 9 && n <= 16 {
		return daisyChars[n-9]
	}
	return 0
}
