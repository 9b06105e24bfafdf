package bcibridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pebbe/zmq4"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/usnistgov/bcibridge/getbytes"
)

// Message tags on the ZMQ stream port. A META message is [tag, json(StreamMetadata)];
// a DATA message is [tag, source id, float32 samples in little-endian order].
const (
	TagMeta = "META"
	TagData = "DATA"
)

// ZMQSink publishes streams on one ZMQ PUB socket. Metadata of every open publication
// is repeated periodically so that late subscribers can decode the data.
type ZMQSink struct {
	mu        sync.Mutex // a zmq4 socket must not be used from two goroutines at once
	socket    messageSender
	closer    func() error
	pubs      *xsync.MapOf[string, *zmqPublication]
	abort     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewZMQSink binds a PUB socket to tcp://*:port.
func NewZMQSink(port int) (*ZMQSink, error) {
	hostname := fmt.Sprintf("tcp://*:%d", port)
	pubSocket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	if err := pubSocket.Bind(hostname); err != nil {
		pubSocket.Close()
		return nil, fmt.Errorf("%w: binding %s: %w", ErrSinkUnavailable, hostname, err)
	}
	return newZMQSink(pubSocket, pubSocket.Close, heartbeatPeriod), nil
}

func newZMQSink(socket messageSender, closer func() error, announce time.Duration) *ZMQSink {
	s := &ZMQSink{
		socket: socket,
		closer: closer,
		pubs:   xsync.NewMapOf[string, *zmqPublication](),
		abort:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.announce(announce)
	return s
}

func (s *ZMQSink) send(parts ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.socket.SendMessage(parts...)
	return err
}

func (s *ZMQSink) announce(period time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-s.abort:
			return
		case <-ticker.C:
			s.pubs.Range(func(_ string, p *zmqPublication) bool {
				if err := s.send(TagMeta, p.meta); err != nil {
					ProblemLogger.Printf("Could not repeat metadata of %s: %v\n", p.md.SourceID, err)
				}
				return true
			})
		}
	}
}

// Publish announces a stream and returns the publication that carries its samples.
func (s *ZMQSink) Publish(sd StreamDescriptor, m *Montage) (Publication, error) {
	if s.closed.Load() {
		return nil, ErrSinkUnavailable
	}
	if m.Len() != sd.ChannelCount {
		return nil, fmt.Errorf("%w: %d labels for %d channels", ErrMontageSizeMismatch, m.Len(),
			sd.ChannelCount)
	}
	md := NewStreamMetadata(sd, m)
	meta, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	p := &zmqPublication{sink: s, md: md, meta: meta}
	if err := s.send(TagMeta, meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	s.pubs.Store(sd.SourceID, p)
	return p, nil
}

// Close ends every publication and closes the socket.
func (s *ZMQSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.abort)
		<-s.done
		s.pubs.Range(func(key string, p *zmqPublication) bool {
			p.closed.Store(true)
			s.pubs.Delete(key)
			return true
		})
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.closer()
	})
	return err
}

type zmqPublication struct {
	sink   *ZMQSink
	md     StreamMetadata
	meta   []byte
	closed atomic.Bool
}

func (p *zmqPublication) Push(sample []float32) error {
	if p.closed.Load() {
		return ErrSinkUnavailable
	}
	if len(sample) != p.md.ChannelCount {
		return fmt.Errorf("sample has %d values for %d channels", len(sample), p.md.ChannelCount)
	}
	if err := p.sink.send(TagData, p.md.SourceID, getbytes.FromSliceFloat32(sample)); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	return nil
}

// Close withdraws the publication. A later publication with the same source id (after a
// montage change) is not affected.
func (p *zmqPublication) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.sink.pubs.Compute(p.md.SourceID, func(old *zmqPublication, loaded bool) (*zmqPublication, bool) {
		return old, !loaded || old == p
	})
	return nil
}

func (p *zmqPublication) Metadata() StreamMetadata {
	return p.md
}
