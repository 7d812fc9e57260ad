package conversation

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Provider for testing.
type Mock struct {
	mu sync.RWMutex

	// State
	connected      bool
	conversationID string
	audio          AudioInterface

	// Callbacks
	onAgentResponse  func(text string)
	onUserTranscript func(text string)
	onError          func(err error)

	// Configurable behavior
	ConnectFunc   func(ctx context.Context) error
	CloseFunc     func() error
	SendAudioFunc func(audio []byte) error

	// Captured calls for assertions
	AudioSent  [][]byte
	CloseCalls int
}

// NewMock creates a new Mock provider.
func NewMock() *Mock {
	return &Mock{conversationID: "mock-conversation"}
}

// WithAudio attaches an AudioInterface the mock will drive like the real
// provider: StartCapture on Connect, StopCapture on Close, Play on
// SimulateAudio.
func (m *Mock) WithAudio(audio AudioInterface) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audio = audio
	return m
}

// Connect implements Provider.
func (m *Mock) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	m.mu.Lock()
	m.connected = true
	audio := m.audio
	m.mu.Unlock()
	if audio != nil {
		audio.StartCapture(m.SendAudio)
	}
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.mu.Lock()
	m.connected = false
	m.CloseCalls++
	audio := m.audio
	m.mu.Unlock()
	if audio != nil {
		audio.StopCapture()
	}
	return nil
}

// IsConnected implements Provider.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SendAudio implements Provider.
func (m *Mock) SendAudio(audio []byte) error {
	if m.SendAudioFunc != nil {
		return m.SendAudioFunc(audio)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.AudioSent = append(m.AudioSent, audio)
	return nil
}

// OnAgentResponse implements Provider.
func (m *Mock) OnAgentResponse(fn func(text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAgentResponse = fn
}

// OnUserTranscript implements Provider.
func (m *Mock) OnUserTranscript(fn func(text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUserTranscript = fn
}

// OnError implements Provider.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// ConversationID implements Provider.
func (m *Mock) ConversationID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conversationID
}

// CloseCount returns how many times Close was called.
func (m *Mock) CloseCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CloseCalls
}

// SentAudio returns a snapshot of the audio chunks sent so far.
func (m *Mock) SentAudio() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.AudioSent))
	copy(out, m.AudioSent)
	return out
}

// SimulateAgentResponse invokes the agent response callback.
func (m *Mock) SimulateAgentResponse(text string) {
	m.mu.RLock()
	fn := m.onAgentResponse
	m.mu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

// SimulateUserTranscript invokes the user transcript callback.
func (m *Mock) SimulateUserTranscript(text string) {
	m.mu.RLock()
	fn := m.onUserTranscript
	m.mu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

// SimulateAudio plays agent audio through the attached AudioInterface.
func (m *Mock) SimulateAudio(audio []byte) {
	m.mu.RLock()
	sink := m.audio
	m.mu.RUnlock()
	if sink != nil {
		sink.Play(audio)
	}
}

// SimulateError invokes the error callback.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Ensure Mock implements Provider.
var _ Provider = (*Mock)(nil)
