package openbci

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaud is the Cyton's serial rate.
const DefaultBaud = 115200

// ftdiVID is the USB vendor id of the FTDI chip on the OpenBCI dongle.
const ftdiVID = "0403"

// readTimeout bounds each blocking read of the pump, so Close is noticed promptly.
const readTimeout = 100 * time.Millisecond

// identifyTimeout bounds the wait for the board's answer to a soft reset.
var identifyTimeout = 3 * time.Second

// Board is a Cyton board on a serial port.
type Board struct {
	portName  string
	port      serial.Port
	rx        *rxBuffer
	daisy     bool
	writeLock sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// FindPort returns the first USB serial port of an OpenBCI dongle.
func FindPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("%w: listing serial ports: %w", ErrDeviceUnavailable, err)
	}
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, ftdiVID) {
			return p.Name, nil
		}
	}
	for _, p := range ports {
		if strings.Contains(p.Name, "usbserial") || strings.Contains(p.Name, "ttyUSB") {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w: no OpenBCI dongle found among %d serial ports", ErrDeviceUnavailable,
		len(ports))
}

// Open connects to the board on portName (auto-detected when empty), soft-resets it,
// and learns from its reply whether a Daisy module is attached.
func Open(portName string, baud int) (*Board, error) {
	if portName == "" {
		var err error
		if portName, err = FindPort(); err != nil {
			return nil, err
		}
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrDeviceUnavailable, portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, portName, err)
	}

	b := &Board{portName: portName, port: port, rx: newRxBuffer(), done: make(chan struct{})}
	go b.pump()

	banner, err := b.identify()
	if err != nil {
		b.Close()
		return nil, err
	}
	b.daisy = strings.Contains(banner, "Daisy")
	log.Printf("Connected to %s: %d channels at %.0f Hz\n", portName, b.ChannelCount(), b.SampleRate())
	return b, nil
}

// pump moves bytes from the port into the receive buffer until Close.
func (b *Board) pump() {
	buf := make([]byte, 1024)
	for {
		select {
		case <-b.done:
			return
		default:
		}
		n, err := b.port.Read(buf)
		if err != nil {
			b.rx.closeWithError(fmt.Errorf("serial read on %s: %w", b.portName, err))
			return
		}
		b.rx.write(buf[:n])
	}
}

// identify sends a soft reset and returns the text the board answers with. Bytes left
// over from an earlier session, such as packets of a board that was still streaming,
// are discarded first.
func (b *Board) identify() (string, error) {
	if err := b.WriteByte(CmdStopStreaming); err != nil {
		return "", err
	}
	time.Sleep(10 * time.Millisecond)
	if err := b.port.ResetInputBuffer(); err != nil {
		log.Printf("openbci: could not flush input of %s: %v\n", b.portName, err)
	}
	b.rx.reset()
	if err := b.WriteByte(CmdSoftReset); err != nil {
		return "", err
	}
	var reply strings.Builder
	deadline := time.Now().Add(identifyTimeout)
	for time.Now().Before(deadline) {
		n, err := b.rx.len()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		if n == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		c, err := b.rx.readByte()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		reply.WriteByte(c)
		if strings.HasSuffix(reply.String(), EndOfTransmission) {
			return reply.String(), nil
		}
	}
	return "", fmt.Errorf("%w: no reply to soft reset from %s within %v", ErrDeviceUnavailable,
		b.portName, identifyTimeout)
}

// WriteByte sends one byte to the board.
func (b *Board) WriteByte(c byte) error {
	b.writeLock.Lock()
	defer b.writeLock.Unlock()
	_, err := b.port.Write([]byte{c})
	return err
}

// BytesWaiting returns the number of received bytes not yet read.
func (b *Board) BytesWaiting() (int, error) {
	return b.rx.len()
}

// ReadByte returns the next received byte, waiting for one if necessary.
func (b *Board) ReadByte() (byte, error) {
	return b.rx.readByte()
}

// ChannelCount is 16 with a Daisy module, else 8.
func (b *Board) ChannelCount() int {
	if b.daisy {
		return DaisyChannels
	}
	return CytonChannels
}

// SampleRate is 125 Hz with a Daisy module, else 250 Hz.
func (b *Board) SampleRate() float64 {
	if b.daisy {
		return DaisySampleRate
	}
	return CytonSampleRate
}

// Close stops the board and closes the port. Later calls return the first result.
func (b *Board) Close() error {
	b.closeOnce.Do(func() {
		b.WriteByte(CmdStopStreaming)
		close(b.done)
		b.closeErr = b.port.Close()
		b.rx.closeWithError(nil)
	})
	return b.closeErr
}

// String names the port.
func (b *Board) String() string {
	return fmt.Sprintf("OpenBCI board on %s", b.portName)
}
