package openbci

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// NoHardware is a drop-in replacement for Board that requires no hardware. It answers
// the text commands a Cyton answers and, while streaming, emits packets at the board's
// packet rate carrying synthetic EEG or the selected test signal.
type NoHardware struct {
	daisy        bool
	rx           *rxBuffer
	lock         sync.Mutex // guards everything below
	streaming    bool
	testSignal   byte
	sampleNumber byte
	nsent        int
	channelCmd   []byte
	settings     map[byte]string
	writes       []byte
	abort        chan struct{}
	generating   sync.WaitGroup
	packetPeriod time.Duration
	isOpen       bool
}

// NewNoHardware returns an open simulated board, with a Daisy module if daisy is set.
func NewNoHardware(daisy bool) *NoHardware {
	return &NoHardware{
		daisy:        daisy,
		rx:           newRxBuffer(),
		settings:     make(map[byte]string),
		packetPeriod: time.Second / 250,
		isOpen:       true,
	}
}

// ChannelCount is 16 with a Daisy module, else 8.
func (nh *NoHardware) ChannelCount() int {
	if nh.daisy {
		return DaisyChannels
	}
	return CytonChannels
}

// SampleRate is 125 Hz with a Daisy module, else 250 Hz.
func (nh *NoHardware) SampleRate() float64 {
	if nh.daisy {
		return DaisySampleRate
	}
	return CytonSampleRate
}

// BytesWaiting returns the number of generated bytes not yet read.
func (nh *NoHardware) BytesWaiting() (int, error) {
	return nh.rx.len()
}

// ReadByte returns the next generated byte, waiting for one if necessary.
func (nh *NoHardware) ReadByte() (byte, error) {
	return nh.rx.readByte()
}

// Written returns every byte written to the board so far.
func (nh *NoHardware) Written() []byte {
	nh.lock.Lock()
	defer nh.lock.Unlock()
	return append([]byte{}, nh.writes...)
}

// IsStreaming reports whether the simulated board is sending packets.
func (nh *NoHardware) IsStreaming() bool {
	nh.lock.Lock()
	defer nh.lock.Unlock()
	return nh.streaming
}

// WriteByte interprets one command byte the way the Cyton firmware does.
func (nh *NoHardware) WriteByte(c byte) error {
	nh.lock.Lock()
	defer nh.lock.Unlock()
	if !nh.isOpen {
		return fmt.Errorf("NoHardware.WriteByte: board is closed")
	}
	nh.writes = append(nh.writes, c)

	if nh.channelCmd != nil {
		nh.channelCmd = append(nh.channelCmd, c)
		if c == CmdChannelEnd {
			nh.finishChannelCommand()
		}
		return nil
	}

	switch c {
	case CmdChannelBegin:
		nh.channelCmd = []byte{c}
	case CmdStartStreaming:
		nh.startStreaming()
	case CmdStopStreaming:
		nh.stopStreaming()
	case CmdSoftReset:
		nh.reply(nh.banner())
	case CmdDefaultSettings:
		nh.settings = make(map[byte]string)
		nh.testSignal = 0
		nh.reply("updating channel settings to default")
	case CmdEnableDaisy:
		if nh.daisy {
			nh.reply("16")
		} else {
			nh.reply("no daisy to attach!8")
		}
	case CmdDisableDaisy:
		if nh.daisy {
			nh.reply("16")
		} else {
			nh.reply("8")
		}
	case CmdQueryRegisters:
		nh.reply(nh.inspectRegisters())
	default:
		for _, ts := range TestSignals {
			if ts.Command == c {
				nh.testSignal = c
				nh.reply("Success: Configured internal test signal.")
			}
		}
	}
	return nil
}

// reply queues a text response, unless packets are flowing.
func (nh *NoHardware) reply(text string) {
	if nh.streaming {
		return
	}
	nh.rx.writeString(text + EndOfTransmission)
}

func (nh *NoHardware) banner() string {
	s := "OpenBCI V3 8-16 channel\nOn Board ADS1299 Device ID: 0x3E\n"
	if nh.daisy {
		s += "On Daisy ADS1299 Device ID: 0x3E\n"
	}
	return s + "LIS3DH Device ID: 0x33\nFirmware: v3.1.2\n"
}

func (nh *NoHardware) finishChannelCommand() {
	cmd := nh.channelCmd
	nh.channelCmd = nil
	if len(cmd) != 9 {
		nh.reply("Failure: too few chars")
		return
	}
	nh.settings[cmd[1]] = string(cmd)
	nh.reply(fmt.Sprintf("Success: Channel set for %c", cmd[1]))
}

// inspectRegisters dumps the simulated channel settings.
func (nh *NoHardware) inspectRegisters() string {
	return spew.Sdump(nh.settings)
}

func (nh *NoHardware) startStreaming() {
	if nh.streaming {
		return
	}
	nh.streaming = true
	nh.abort = make(chan struct{})
	nh.generating.Add(1)
	go nh.generate(nh.abort)
}

func (nh *NoHardware) stopStreaming() {
	if !nh.streaming {
		return
	}
	nh.streaming = false
	close(nh.abort)
}

// generate emits one packet per packet period until abort is closed.
func (nh *NoHardware) generate(abort <-chan struct{}) {
	defer nh.generating.Done()
	ticker := time.NewTicker(nh.packetPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-abort:
			return
		case <-ticker.C:
			nh.lock.Lock()
			pkt := nh.nextPacket()
			nh.lock.Unlock()
			nh.rx.write(pkt)
		}
	}
}

// nextPacket synthesizes the next packet. With a Daisy module, pairs of packets carry
// channels 9-16 (even sample number) and 1-8 (odd).
func (nh *NoHardware) nextPacket() []byte {
	sample := nh.nsent
	firstChannel := 0
	if nh.daisy {
		sample = nh.nsent / 2
		if nh.sampleNumber%2 == 0 {
			firstChannel = channelsPerPkt
		}
	}
	t := float64(sample) / nh.SampleRate()
	values := make([]float64, channelsPerPkt)
	for i := range values {
		values[i] = nh.signal(firstChannel+i, t)
	}
	pkt := EncodePacket(nh.sampleNumber, values, [auxPerPkt]int16{0, 0, 8192})
	nh.sampleNumber++
	nh.nsent++
	return pkt
}

// testAmplitude is the ADS1299 internal test signal amplitude in microvolts.
const testAmplitude = 1875.0

// signal is the value of channel ch at time t, in microvolts.
func (nh *NoHardware) signal(ch int, t float64) float64 {
	square := func(freq float64) float64 {
		if math.Mod(t*freq, 1) < 0.5 {
			return 1
		}
		return -1
	}
	switch nh.testSignal {
	case 0:
		return 20*math.Sin(2*math.Pi*10*t+float64(ch)) + 5*math.Sin(2*math.Pi*(1+float64(ch))*t)
	case '0':
		return 0
	case 'p':
		return testAmplitude
	case '-':
		return testAmplitude * square(1)
	case '=':
		return testAmplitude * square(2)
	case '[':
		return 2 * testAmplitude * square(1)
	case ']':
		return 2 * testAmplitude * square(2)
	}
	return 0
}

// Close stops packet generation; it errors if already closed.
func (nh *NoHardware) Close() error {
	nh.lock.Lock()
	if !nh.isOpen {
		nh.lock.Unlock()
		return fmt.Errorf("NoHardware.Close: already closed")
	}
	nh.isOpen = false
	nh.stopStreaming()
	nh.lock.Unlock()
	nh.generating.Wait()
	nh.rx.closeWithError(nil)
	return nil
}
