// Package relay bridges a browser-facing transport and the conversation
// provider's play/record audio interface. One Relay belongs to exactly one
// interview session and is never shared.
package relay

import (
	"encoding/base64"
	"log/slog"
	"sync"

	"github.com/voxhire/interviewd/pkg/conversation"
	"github.com/voxhire/interviewd/pkg/protocol"
)

// DefaultBufferCap is the outbound buffer capacity. Frames produced while
// capture has not started yet are held up to this bound, oldest dropped
// first.
const DefaultBufferCap = 10

// Transport is the outbound half of the browser connection.
type Transport interface {
	WriteMessage(msg protocol.Message) error
}

// Relay adapts the transport stream to conversation.AudioInterface.
//
// Outbound agent audio is base64-encoded and written to the transport
// immediately; while not capturing it is additionally held in a bounded
// FIFO so a burst produced before the browser starts streaming is
// observable up to the buffer bound. Starting or stopping capture clears
// the buffer so no stale audio survives a state transition.
type Relay struct {
	transport Transport
	logger    *slog.Logger

	mu        sync.Mutex
	capturing bool
	onFrame   func(audio []byte) error
	onActive  func()
	buffer    *frameBuffer
}

// New creates a Relay bound to the given transport. The logger should
// already carry the session id.
func New(transport Transport, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		transport: transport,
		logger:    logger.With("component", "relay"),
		buffer:    newFrameBuffer(DefaultBufferCap),
	}
}

// Play delivers one chunk of agent audio. Implements
// conversation.AudioInterface.
func (r *Relay) Play(audio []byte) {
	r.Deliver(base64.StdEncoding.EncodeToString(audio))
}

// Deliver sends a pre-encoded outbound frame. A transport write failure is
// logged and swallowed; the relay keeps accepting frames until the session
// stops it.
func (r *Relay) Deliver(data string) {
	r.mu.Lock()
	if !r.capturing {
		if r.buffer.Push(data) {
			r.logger.Debug("outbound buffer full, dropped oldest frame")
		}
	}
	r.mu.Unlock()

	if err := r.transport.WriteMessage(protocol.NewAudio(data)); err != nil {
		r.logger.Warn("transport write failed", "error", err)
	}
}

// StartCapture begins caller audio capture. Implements
// conversation.AudioInterface.
func (r *Relay) StartCapture(send func(audio []byte) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capturing = true
	r.onFrame = send
	r.buffer.Clear()
}

// StopCapture ends caller audio capture and drops any pending state.
// Implements conversation.AudioInterface.
func (r *Relay) StopCapture() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capturing = false
	r.onFrame = nil
	r.buffer.Clear()
}

// IsCapturing reports whether capture is active. Implements
// conversation.AudioInterface.
func (r *Relay) IsCapturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capturing
}

// OnActivity sets a hook invoked for every inbound frame accepted while
// capturing. The session uses it to refresh its idle clock.
func (r *Relay) OnActivity(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onActive = fn
}

// HandleInbound forwards one caller audio frame to the provider. Frames
// arriving while not capturing are dropped; the transport loop logs them.
// Returns false when the frame was dropped.
func (r *Relay) HandleInbound(audio []byte) bool {
	r.mu.Lock()
	fn := r.onFrame
	active := r.onActive
	capturing := r.capturing
	r.mu.Unlock()

	if !capturing || fn == nil {
		return false
	}
	if active != nil {
		active()
	}
	if err := fn(audio); err != nil {
		r.logger.Warn("inbound frame delivery failed", "error", err)
	}
	return true
}

// Buffered returns the number of frames currently held.
func (r *Relay) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buffer.Len()
}

// Ensure Relay satisfies the provider's audio contract.
var _ conversation.AudioInterface = (*Relay)(nil)
