package transport

import (
	"encoding/base64"
	"time"

	"github.com/voxhire/interviewd/pkg/protocol"
	"github.com/voxhire/interviewd/pkg/relay"
)

// Router is the registry surface the event loop needs. Satisfied by
// *interview.Registry.
type Router interface {
	RegisterTransport(id string, t relay.Transport)
	DeregisterTransport(id string)
	RouteInboundFrame(id string, audio []byte)
}

// Serve runs the connection's event loop until the socket closes. It
// registers the transport, acknowledges the connection, routes inbound
// audio frames, and always deregisters on exit. Malformed payloads are
// logged and skipped; they never close the connection.
func Serve(router Router, c *Conn) {
	defer func() {
		router.DeregisterTransport(c.sessionID)
		_ = c.Close()
		c.logger.Info("connection closed")
	}()

	router.RegisterTransport(c.sessionID, c)
	c.logger.Info("connection established")

	if err := c.WriteMessage(protocol.NewConnectionAck(c.sessionID)); err != nil {
		c.logger.Warn("ack write failed", "error", err)
		return
	}

	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop()

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			return
		}
		_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(router, data)
	}
}

// handleMessage routes one inbound message.
func (c *Conn) handleMessage(router Router, data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		c.logger.Warn("malformed message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeAudio:
		audio, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			c.logger.Warn("malformed audio payload", "error", err)
			return
		}
		router.RouteInboundFrame(c.sessionID, audio)
	default:
		c.logger.Debug("unhandled message type", "type", msg.Type)
	}
}
