package bcibridge

// Contain the ClientUpdater, which publishes JSON-encoded messages giving the latest
// bridge state.

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pebbe/zmq4"
)

// ClientUpdate carries the messages to be published on the status port.
type ClientUpdate struct {
	tag   string
	state any
}

// Tags of status messages
const (
	TagStatus  = "STATUS"
	TagMontage = "MONTAGE"
	TagAlive   = "ALIVE"
)

// StatusMessage reports the acquisition state after every change.
type StatusMessage struct {
	State        string
	Active       bool
	Pattern      int
	ChannelCount int
	SampleRate   float64
	SourceID     string
	Frames       int64
}

// MontageMessage reports the labels of the current publication.
type MontageMessage struct {
	SourceID string
	Labels   []string
}

// AliveMessage is the periodic heartbeat.
type AliveMessage struct {
	Alive   bool
	Uptime  float64 // seconds since start
	Version string
}

// heartbeatPeriod is also how often sinks repeat their stream metadata.
const heartbeatPeriod = 2 * time.Second

// messageSender is the part of a zmq4.Socket used to publish multipart messages.
type messageSender interface {
	SendMessage(parts ...any) (int, error)
}

// RunClientUpdater forwards any message from its input channel to a ZMQ PUB socket on
// the given port, and sends an ALIVE heartbeat every 2 seconds. It returns when abort
// is closed or messages is closed.
func RunClientUpdater(portstatus int, messages <-chan ClientUpdate, abort <-chan struct{}) error {
	hostname := fmt.Sprintf("tcp://*:%d", portstatus)
	pubSocket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return err
	}
	defer pubSocket.Close()
	if err := pubSocket.Bind(hostname); err != nil {
		return fmt.Errorf("binding status socket %s: %w", hostname, err)
	}
	publishUpdates(pubSocket, messages, abort, heartbeatPeriod)
	return nil
}

func publishUpdates(pub messageSender, messages <-chan ClientUpdate, abort <-chan struct{},
	heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-abort:
			return
		case update, ok := <-messages:
			if !ok {
				return
			}
			sendUpdate(pub, update)
		case <-ticker.C:
			sendUpdate(pub, ClientUpdate{TagAlive, AliveMessage{
				Alive:   true,
				Uptime:  time.Since(StartTime).Seconds(),
				Version: Build.Version,
			}})
		}
	}
}

func sendUpdate(pub messageSender, update ClientUpdate) {
	message, err := json.Marshal(update.state)
	if err != nil {
		ProblemLogger.Printf("Could not encode %s update: %v\n", update.tag, err)
		return
	}
	if update.tag != TagAlive {
		UpdateLogger.Printf("%s %s\n", update.tag, message)
	}
	if _, err := pub.SendMessage(update.tag, message); err != nil {
		ProblemLogger.Printf("Could not publish %s update: %v\n", update.tag, err)
	}
}
