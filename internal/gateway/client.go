package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/agentstudio/internal/logging"
	"github.com/soyeahso/agentstudio/internal/studio"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// Client is an authenticated WebSocket connection and the studio session it
// drives.
type Client struct {
	ConnID      string
	Info        ClientInfo
	Auth        AuthResult
	Studio      *studio.Studio
	ConnectedAt time.Time

	conn *websocket.Conn

	// wmu serializes writes; async handlers and broadcasts share the socket.
	wmu    sync.Mutex
	closed bool
}

// NewClient wraps a connection that has completed the handshake.
func NewClient(conn *websocket.Conn, info ClientInfo, auth AuthResult, st *studio.Studio) *Client {
	return &Client{
		ConnID:      uuid.Must(uuid.NewV7()).String(),
		Info:        info,
		Auth:        auth,
		Studio:      st,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// Send writes one frame.
func (c *Client) Send(frame Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed || c.conn == nil {
		return ErrClientClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

// Respond sends a success response for the given request ID.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for the given request ID.
func (c *Client) RespondError(reqID string, shape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, shape))
}

// ReadFrame blocks for the next frame. Only the read loop calls it.
func (c *Client) ReadFrame() (Frame, error) {
	var f Frame
	err := c.conn.ReadJSON(&f)
	return f, err
}

// Close closes the socket once; later sends fail with ErrClientClosed.
func (c *Client) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ClientRegistry tracks connected clients by connection ID.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	n := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Int("clients", n).Msg("client connected")
}

// Remove unregisters a client and reports whether it was present.
func (r *ClientRegistry) Remove(connID string) bool {
	r.mu.Lock()
	_, ok := r.clients[connID]
	delete(r.clients, connID)
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("connId", connID).Msg("client disconnected")
	}
	return ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Snapshot returns the connected clients in no particular order.
func (r *ClientRegistry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast sends frame to every client. The registry lock is not held while
// writing, so a slow socket cannot block connects and disconnects.
func (r *ClientRegistry) Broadcast(frame Frame) int {
	sent := 0
	for _, c := range r.Snapshot() {
		if err := c.Send(frame); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Str("event", frame.Event).Msg("broadcast send failed")
			continue
		}
		sent++
	}
	return sent
}

// CloseAll closes and forgets every client.
func (r *ClientRegistry) CloseAll() {
	for _, c := range r.Snapshot() {
		c.Close()
		r.Remove(c.ConnID)
	}
}
