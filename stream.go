package bcibridge

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// DeviceLink is the byte-level connection to an acquisition board. Only the Controller
// writes to it; the Acquisition reads sample frames from it while streaming.
type DeviceLink interface {
	WriteByte(c byte) error
	BytesWaiting() (int, error)
	ReadByte() (byte, error)
	ChannelCount() int
	SampleRate() float64
	Close() error
}

// StreamDescriptor names and shapes a published stream. It is immutable once published;
// changing the channel count or rate needs a new descriptor with a new SourceID.
type StreamDescriptor struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	ChannelCount int     `json:"channel_count"`
	SampleRate   float64 `json:"nominal_srate"`
	Format       string  `json:"channel_format"`
	SourceID     string  `json:"source_id"`
	Manufacturer string  `json:"manufacturer"`
}

// NewStreamDescriptor describes a stream with a fresh, unique SourceID.
func NewStreamDescriptor(cfg StreamConfig, nchan int, rate float64) StreamDescriptor {
	return StreamDescriptor{
		Name:         cfg.Name,
		Type:         cfg.Type,
		ChannelCount: nchan,
		SampleRate:   rate,
		Format:       cfg.Format,
		SourceID:     fmt.Sprintf("%s_id%s", cfg.Name, strings.ToLower(ulid.Make().String())),
		Manufacturer: cfg.Manufacturer,
	}
}

// Summary is the text printed when a stream is configured.
func (sd StreamDescriptor) Summary() string {
	return fmt.Sprintf("\n-------------CONFIG--------------\n"+
		"Stream Configuration: \n"+
		"      Name: %s \n"+
		"      Type: %s \n"+
		"      Channel Count: %d\n"+
		"      Sampling Rate: %g\n"+
		"      Channel Format: %s \n"+
		"      Source Id: %s \n",
		sd.Name, sd.Type, sd.ChannelCount, sd.SampleRate, sd.Format, sd.SourceID)
}

// StreamMetadata is what a sink announces about a publication.
type StreamMetadata struct {
	StreamDescriptor
	Channels []Channel `json:"channels"`
}

// NewStreamMetadata joins a descriptor and its montage.
func NewStreamMetadata(sd StreamDescriptor, m *Montage) StreamMetadata {
	return StreamMetadata{StreamDescriptor: sd, Channels: m.Channels()}
}

// StreamSink opens publications of sample streams.
type StreamSink interface {
	Publish(sd StreamDescriptor, m *Montage) (Publication, error)
	Close() error
}

// Publication is one open stream. Push returns ErrSinkUnavailable once the publication
// is closed.
type Publication interface {
	Push(sample []float32) error
	Close() error
	Metadata() StreamMetadata
}
