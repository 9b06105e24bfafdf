package runledger

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// The composite types used for messages to the ClickHouse database.

// SessionMessage is the information for the bridgesessions table: one row when the bridge
// starts and a second, with End filled in, when it exits.
type SessionMessage struct {
	ID        string
	Hostname  string
	Githash   string
	Version   string
	GoVersion string
	CPUs      int
	Device    string
	Start     time.Time
	End       time.Time
}

// NewSessionMessage describes a session of this process starting now.
func NewSessionMessage(version, githash, device string) *SessionMessage {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &SessionMessage{
		ID:        ulid.Make().String(),
		Hostname:  hostname,
		Githash:   githash,
		Version:   version,
		GoVersion: runtime.Version(),
		CPUs:      runtime.NumCPU(),
		Device:    device,
		Start:     time.Now(),
	}
}

// PublicationMessage is the information required to make an entry in the publications
// table. There is one per published stream, so every montage change adds a row.
type PublicationMessage struct {
	SourceID   string
	Name       string
	StreamType string
	Labels     []string
	Nchannels  int
	SampleRate float64
	Published  time.Time
}

func (m *PublicationMessage) labelList() string {
	return strings.Join(m.Labels, ",")
}

const timeLayout = "2006-01-02 15:04:05.000000"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
