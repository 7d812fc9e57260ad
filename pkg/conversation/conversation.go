// Package conversation provides a client for real-time voice conversation
// with AI interview agents. The only production backend is the ElevenLabs
// Agents Platform; a Mock implementation is provided for tests.
//
// The package abstracts the WebSocket-based audio streaming loop into a
// small Provider interface. Audio flows through an AudioInterface so the
// caller decides where agent speech goes and where microphone frames come
// from.
//
// Example usage:
//
//	provider, err := conversation.NewElevenLabs(
//	    conversation.WithAPIKey(apiKey),
//	    conversation.WithAgentID(agentID),
//	    conversation.WithAudioInterface(sink),
//	    conversation.WithDynamicVariables(map[string]string{
//	        "resume":          resume,
//	        "job_description": jobDescription,
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	provider.OnAgentResponse(func(text string) {
//	    // Count the question, show it in the UI, ...
//	})
//
//	if err := provider.Connect(ctx); err != nil {
//	    return err
//	}
package conversation

import "context"

// Provider defines the interface for real-time voice conversation providers.
// Implementations handle the full conversation loop: STT → LLM → TTS.
type Provider interface {
	// Connect establishes the connection to the conversation service and
	// starts the session. Call this after setting up event handlers.
	Connect(ctx context.Context) error

	// Close gracefully ends the session and releases resources.
	// Safe to call more than once.
	Close() error

	// IsConnected returns true if the provider has an active connection.
	IsConnected() bool

	// SendAudio streams one chunk of caller audio to the agent.
	SendAudio(audio []byte) error

	// OnAgentResponse sets the callback for complete agent utterances.
	OnAgentResponse(fn func(text string))

	// OnUserTranscript sets the callback for transcribed caller speech.
	OnUserTranscript(fn func(text string))

	// OnError sets the callback for asynchronous error events.
	OnError(fn func(err error))

	// ConversationID returns the provider-assigned conversation id,
	// or "" before the session is initiated.
	ConversationID() string
}

// AudioInterface is the play/record contract a Provider drives. The
// provider calls Play for every agent audio chunk, StartCapture once the
// session is live (handing over the function that forwards microphone
// frames to the agent), and StopCapture when the session ends.
type AudioInterface interface {
	// Play delivers one chunk of agent audio for output.
	Play(audio []byte)

	// StartCapture begins caller audio capture. Captured frames must be
	// passed to send.
	StartCapture(send func(audio []byte) error)

	// StopCapture ends caller audio capture.
	StopCapture()

	// IsCapturing reports whether capture is active.
	IsCapturing() bool
}

// ConnectionState represents the WebSocket connection state.
type ConnectionState int

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates connection is being established.
	StateConnecting
	// StateConnected indicates an active connection.
	StateConnected
)

// String returns a human-readable connection state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
