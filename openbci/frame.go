package openbci

import (
	"context"
	"fmt"
	"log"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Cyton packet layout.
const (
	PacketLength   = 33
	PacketHeader   = 0xA0
	footerMask     = 0xF0
	PacketFooter   = 0xC0
	channelsPerPkt = 8
	auxPerPkt      = 3
)

// ScaleMicrovolts converts a 24-bit ADS1299 count to microvolts at the default gain of 24.
var ScaleMicrovolts = 4.5 / 24.0 / float64(1<<23-1) * 1e6

// ScaleAccel converts an accelerometer count to g.
const ScaleAccel = 0.002 / 16.0

// Frame is one multi-channel sample, in microvolts.
type Frame struct {
	SampleNumber byte
	Channels     []float32
	Aux          []float32
}

// ByteSource is the read side of a board link.
type ByteSource interface {
	BytesWaiting() (int, error)
	ReadByte() (byte, error)
}

// FrameReader decodes Cyton packets from a ByteSource. With 16 channels it joins the
// Daisy half (even sample number, channels 9-16) and the on-board half (the following odd
// number, channels 1-8) into one frame. It polls BytesWaiting so that a cancelled context is noticed between bytes.
type FrameReader struct {
	src          ByteSource
	nchan        int
	PollInterval time.Duration
	firstHalf    *Frame
	skipped      int
}

// NewFrameReader returns a reader producing nchan-channel frames (8 or 16).
func NewFrameReader(src ByteSource, nchan int) *FrameReader {
	return &FrameReader{src: src, nchan: nchan, PollInterval: time.Millisecond}
}

// Skipped counts bytes discarded while looking for packet boundaries.
func (fr *FrameReader) Skipped() int {
	return fr.skipped
}

// ReadFrame returns the next complete frame. It returns ctx.Err() when ctx is done; any
// partially read packet is then discarded.
func (fr *FrameReader) ReadFrame(ctx context.Context) (*Frame, error) {
	for {
		f, err := fr.readPacket(ctx)
		if err != nil {
			fr.firstHalf = nil
			return nil, err
		}
		if fr.nchan <= channelsPerPkt {
			return f, nil
		}
		if f.SampleNumber%2 == 0 {
			fr.firstHalf = f
			continue
		}
		if fr.firstHalf == nil || fr.firstHalf.SampleNumber+1 != f.SampleNumber {
			// On-board half without its Daisy half: drop it.
			fr.firstHalf = nil
			continue
		}
		merged := &Frame{
			SampleNumber: f.SampleNumber,
			Channels:     append(f.Channels, fr.firstHalf.Channels...),
			Aux:          make([]float32, auxPerPkt),
		}
		for i := range merged.Aux {
			merged.Aux[i] = (fr.firstHalf.Aux[i] + f.Aux[i]) / 2
		}
		fr.firstHalf = nil
		return merged, nil
	}
}

func (fr *FrameReader) readByte(ctx context.Context) (byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := fr.src.BytesWaiting()
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return fr.src.ReadByte()
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(fr.PollInterval):
		}
	}
}

// readPacket finds the next header, reads one packet, and decodes it if the footer is
// valid. Packets with a bad footer are dropped and the search resumes.
func (fr *FrameReader) readPacket(ctx context.Context) (*Frame, error) {
	var pkt [PacketLength]byte
	for {
		c, err := fr.readByte(ctx)
		if err != nil {
			return nil, err
		}
		if c != PacketHeader {
			fr.skipped++
			continue
		}
		pkt[0] = c
		for i := 1; i < PacketLength; i++ {
			if pkt[i], err = fr.readByte(ctx); err != nil {
				return nil, err
			}
		}
		if pkt[PacketLength-1]&footerMask != PacketFooter {
			fr.skipped += PacketLength
			log.Printf("openbci: unexpected packet footer 0x%02x, dropping packet %d\n",
				pkt[PacketLength-1], pkt[1])
			continue
		}
		return DecodePacket(pkt[:])
	}
}

// DecodePacket decodes a single 33-byte Cyton packet.
func DecodePacket(pkt []byte) (*Frame, error) {
	if len(pkt) != PacketLength {
		return nil, fmt.Errorf("packet has %d bytes, want %d", len(pkt), PacketLength)
	}
	if pkt[0] != PacketHeader || pkt[PacketLength-1]&footerMask != PacketFooter {
		return nil, fmt.Errorf("packet framing bytes 0x%02x...0x%02x are invalid", pkt[0],
			pkt[PacketLength-1])
	}
	counts := make([]float64, channelsPerPkt)
	for i := range counts {
		counts[i] = float64(int24(pkt[2+3*i:]))
	}
	floats.Scale(ScaleMicrovolts, counts)

	f := &Frame{
		SampleNumber: pkt[1],
		Channels:     make([]float32, channelsPerPkt),
		Aux:          make([]float32, auxPerPkt),
	}
	for i, v := range counts {
		f.Channels[i] = float32(v)
	}
	for i := range f.Aux {
		hi, lo := pkt[26+2*i], pkt[27+2*i]
		f.Aux[i] = float32(int16(uint16(hi)<<8|uint16(lo))) * ScaleAccel
	}
	return f, nil
}

// int24 reads a big-endian two's-complement 24-bit value.
func int24(b []byte) int32 {
	v := int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// putInt24 is the inverse of int24; values are clipped to the 24-bit range.
func putInt24(b []byte, v int32) {
	const maxCount = 1<<23 - 1
	if v > maxCount {
		v = maxCount
	} else if v < -maxCount-1 {
		v = -maxCount - 1
	}
	u := uint32(v) & 0xFFFFFF
	b[0], b[1], b[2] = byte(u>>16), byte(u>>8), byte(u)
}

// EncodePacket builds a Cyton packet from channel values in microvolts. It is the
// inverse of DecodePacket up to quantization.
func EncodePacket(sampleNumber byte, microvolts []float64, aux [auxPerPkt]int16) []byte {
	pkt := make([]byte, PacketLength)
	pkt[0] = PacketHeader
	pkt[1] = sampleNumber
	for i := 0; i < channelsPerPkt && i < len(microvolts); i++ {
		counts := microvolts[i] / ScaleMicrovolts
		if counts >= 0 {
			counts += 0.5
		} else {
			counts -= 0.5
		}
		putInt24(pkt[2+3*i:], int32(counts))
	}
	for i, a := range aux {
		pkt[26+2*i], pkt[27+2*i] = byte(uint16(a)>>8), byte(uint16(a))
	}
	pkt[PacketLength-1] = PacketFooter
	return pkt
}
