package bcibridge

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// WebSocketPath is where WebSocketSink serves its stream.
const WebSocketPath = "/stream"

// wsMessage is the JSON frame sent to WebSocket clients. Type is "meta" or "data".
type wsMessage struct {
	Type     string          `json:"type"`
	SourceID string          `json:"source_id"`
	Metadata *StreamMetadata `json:"metadata,omitempty"`
	Sample   []float32       `json:"sample,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsMessage
}

// clientBacklog is how many messages may wait for a client before new ones are dropped.
const clientBacklog = 512

// writePump copies messages from the send channel to the connection.
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// WebSocketSink serves published streams to browsers and other WebSocket clients as JSON.
// New clients first receive the metadata of the open publication. A client that cannot
// keep up misses messages rather than slowing the acquisition.
type WebSocketSink struct {
	upgrader websocket.Upgrader
	mux      *http.ServeMux
	server   *http.Server

	mu      sync.RWMutex
	clients map[*wsClient]bool
	current *wsPublication
	closed  bool
}

// NewWebSocketSink starts an HTTP server on the given port.
func NewWebSocketSink(port int) (*WebSocketSink, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	s := newWebSocketSink()
	s.server = &http.Server{Handler: s}
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ProblemLogger.Printf("WebSocket server stopped: %v\n", err)
		}
	}()
	return s, nil
}

func newWebSocketSink() *WebSocketSink {
	s := &WebSocketSink{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
		},
		mux:     http.NewServeMux(),
		clients: make(map[*wsClient]bool),
	}
	s.mux.HandleFunc(WebSocketPath, s.serveStream)
	return s
}

// ServeHTTP serves the stream endpoint. The sink can also be mounted on another server.
func (s *WebSocketSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *WebSocketSink) serveStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	client := &wsClient{conn: conn, send: make(chan wsMessage, clientBacklog)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[client] = true
	if s.current != nil {
		client.send <- s.current.metaMessage()
	}
	s.mu.Unlock()
	Log.Info("stream client connected", "remote", r.RemoteAddr)

	go client.writePump()
	// Clients do not send anything; reading only detects that they went away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.unregister(client)
	Log.Info("stream client disconnected", "remote", r.RemoteAddr)
}

func (s *WebSocketSink) unregister(client *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[client] {
		delete(s.clients, client)
		close(client.send)
	}
}

func (s *WebSocketSink) broadcast(msg wsMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

// Clients is the number of connected clients.
func (s *WebSocketSink) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Publish makes sd the stream sent to clients, replacing any earlier publication.
func (s *WebSocketSink) Publish(sd StreamDescriptor, m *Montage) (Publication, error) {
	if m.Len() != sd.ChannelCount {
		return nil, fmt.Errorf("%w: %d labels for %d channels", ErrMontageSizeMismatch, m.Len(),
			sd.ChannelCount)
	}
	p := &wsPublication{sink: s, md: NewStreamMetadata(sd, m)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSinkUnavailable
	}
	if s.current != nil {
		s.current.closed.Store(true)
	}
	s.current = p
	s.mu.Unlock()
	s.broadcast(p.metaMessage())
	return p, nil
}

// Close disconnects every client and stops the server.
func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.current != nil {
		s.current.closed.Store(true)
		s.current = nil
	}
	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
	s.mu.Unlock()
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

type wsPublication struct {
	sink   *WebSocketSink
	md     StreamMetadata
	closed atomic.Bool
}

func (p *wsPublication) metaMessage() wsMessage {
	md := p.md
	return wsMessage{Type: "meta", SourceID: md.SourceID, Metadata: &md}
}

func (p *wsPublication) Push(sample []float32) error {
	if p.closed.Load() {
		return ErrSinkUnavailable
	}
	if len(sample) != p.md.ChannelCount {
		return fmt.Errorf("sample has %d values for %d channels", len(sample), p.md.ChannelCount)
	}
	// Clients receive the message after Push returns, so it needs its own copy.
	p.sink.broadcast(wsMessage{Type: "data", SourceID: p.md.SourceID, Sample: append([]float32{}, sample...)})
	return nil
}

func (p *wsPublication) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.sink.mu.Lock()
	defer p.sink.mu.Unlock()
	if p.sink.current == p {
		p.sink.current = nil
	}
	return nil
}

func (p *wsPublication) Metadata() StreamMetadata {
	return p.md
}
