// Package transport manages the browser-facing WebSocket connection: one
// read loop per socket that registers itself with the session registry,
// routes inbound audio frames, and reconciles disconnects.
package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/voxhire/interviewd/pkg/protocol"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames. Audio chunks are small; this
	// allows headroom for base64 expansion.
	maxMessageSize = 256 * 1024
)

// Socket is the subset of the websocket connection the transport needs.
// Satisfied by *websocket.Conn; tests use a fake.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Conn wraps one browser WebSocket. Writes are serialized with a mutex:
// the session goroutine, provider callbacks, and the ping ticker all
// write concurrently and the underlying conn allows a single writer.
type Conn struct {
	id        string
	sessionID string
	sock      Socket
	logger    *slog.Logger

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewConn wraps an accepted WebSocket for the given session id.
func NewConn(sessionID string, sock Socket, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Conn{
		id:        id,
		sessionID: sessionID,
		sock:      sock,
		logger: logger.With(
			"component", "transport",
			"session_id", sessionID,
			"conn_id", id,
		),
		done: make(chan struct{}),
	}
}

// SessionID returns the session id this connection is scoped to.
func (c *Conn) SessionID() string {
	return c.sessionID
}

// WriteMessage JSON-encodes and writes one protocol message.
func (c *Conn) WriteMessage(msg protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

// Close closes the socket and stops the ping ticker. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.sock.Close()
	})
	return err
}

// ping writes a control ping under the write lock.
func (c *Conn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
	return c.sock.WriteMessage(websocket.PingMessage, nil)
}

// pingLoop keeps the connection alive until the read loop exits.
func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
