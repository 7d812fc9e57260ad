package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	elevenLabsBaseURL = "wss://api.elevenlabs.io/v1/convai/conversation"
)

// ElevenLabs implements Provider for the ElevenLabs Agents Platform.
type ElevenLabs struct {
	config    *Config
	logger    *slog.Logger
	apiClient *apiClient

	mu             sync.RWMutex
	conn           *websocket.Conn
	state          ConnectionState
	conversationID string
	cancelCtx      context.CancelFunc

	// Callbacks
	onAgentResponse  func(text string)
	onUserTranscript func(text string)
	onError          func(err error)

	// Atomic counters
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewElevenLabs creates a new ElevenLabs conversation provider.
//
// A public agent only needs WithAgentID. Supplying WithAPIKey switches to
// the authenticated handshake: the WebSocket URL is fetched as a signed
// URL through the REST API before dialing.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ElevenLabs{
		config:    cfg,
		logger:    cfg.Logger.With("component", "conversation.elevenlabs"),
		apiClient: newAPIClient(cfg.APIKey, cfg.APIBaseURL),
		state:     StateDisconnected,
	}, nil
}

// Connect establishes the WebSocket connection and initiates the session.
func (e *ElevenLabs) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateDisconnected {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.state = StateConnecting
	e.mu.Unlock()

	wsURL, err := e.resolveURL(ctx)
	if err != nil {
		e.setState(StateDisconnected)
		return err
	}

	conn, err := e.dial(ctx, wsURL)
	if err != nil {
		e.setState(StateDisconnected)
		return err
	}

	// Create cancellation context for the message handler
	msgCtx, cancel := context.WithCancel(context.Background())

	e.mu.Lock()
	e.conn = conn
	e.state = StateConnected
	e.cancelCtx = cancel
	e.mu.Unlock()

	if err := e.sendInitiation(conn); err != nil {
		_ = e.Close()
		return err
	}

	go e.handleMessages(msgCtx)

	if e.config.Audio != nil {
		e.config.Audio.StartCapture(e.SendAudio)
	}

	e.logger.Info("connected to ElevenLabs Agents Platform",
		"agent_id", e.config.AgentID,
	)

	return nil
}

// resolveURL builds the WebSocket URL, fetching a signed URL when the
// agent requires authentication.
func (e *ElevenLabs) resolveURL(ctx context.Context) (string, error) {
	if e.config.RequiresAuth {
		signed, err := e.apiClient.GetSignedURL(ctx, e.config.AgentID)
		if err != nil {
			return "", fmt.Errorf("conversation.elevenlabs: signed URL: %w", err)
		}
		return signed, nil
	}

	base := e.config.BaseURL
	if base == "" {
		base = elevenLabsBaseURL
	}
	wsURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("conversation.elevenlabs: invalid URL: %w", err)
	}
	q := wsURL.Query()
	q.Set("agent_id", e.config.AgentID)
	wsURL.RawQuery = q.Encode()
	return wsURL.String(), nil
}

// dial connects with bounded exponential backoff. Transient dial failures
// are retried; server rejections below 500 are not.
func (e *ElevenLabs) dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	headers := http.Header{}
	if e.config.APIKey != "" {
		headers.Set("xi-api-key", e.config.APIKey)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: e.config.Timeout,
	}

	var conn *websocket.Conn
	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(e.config.DialBackoff)),
		uint64(e.config.DialAttempts-1),
	), ctx)

	err := backoff.Retry(func() error {
		c, resp, dialErr := dialer.DialContext(ctx, wsURL, headers)
		if dialErr == nil {
			conn = c
			return nil
		}
		if resp != nil && resp.StatusCode < 500 {
			return backoff.Permanent(NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				dialErr,
				false,
			))
		}
		e.logger.Warn("dial failed, retrying", "error", dialErr)
		return NewConnectionError("dial failed", dialErr, true)
	}, policy)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// sendInitiation starts the session with the configured dynamic variables.
func (e *ElevenLabs) sendInitiation(conn *websocket.Conn) error {
	init := elevenLabsInitiation{
		Type:             "conversation_initiation_client_data",
		DynamicVariables: e.config.DynamicVariables,
	}
	data, err := json.Marshal(init)
	if err != nil {
		return fmt.Errorf("conversation.elevenlabs: marshal failed: %w", err)
	}
	if err := e.write(conn, data); err != nil {
		return NewConnectionError("send initiation failed", err, true)
	}
	e.messagesSent.Add(1)
	return nil
}

// ConversationID returns the server-assigned conversation id, if known.
func (e *ElevenLabs) ConversationID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conversationID
}

// Close gracefully ends the session.
func (e *ElevenLabs) Close() error {
	if e.config.Audio != nil {
		e.config.Audio.StopCapture()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDisconnected {
		return nil
	}

	if e.cancelCtx != nil {
		e.cancelCtx()
	}

	if e.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = e.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		e.conn.Close()
		e.conn = nil
	}

	e.state = StateDisconnected
	e.logger.Info("disconnected from ElevenLabs Agents Platform")

	return nil
}

// IsConnected returns true if connected.
func (e *ElevenLabs) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state == StateConnected
}

// SendAudio streams one chunk of caller audio to the agent.
func (e *ElevenLabs) SendAudio(audio []byte) error {
	e.mu.RLock()
	conn := e.conn
	state := e.state
	e.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	// ElevenLabs expects a flat user_audio_chunk message
	msg := map[string]string{
		"user_audio_chunk": base64.StdEncoding.EncodeToString(audio),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("conversation.elevenlabs: marshal failed: %w", err)
	}

	if err := e.write(conn, data); err != nil {
		return NewConnectionError("send audio failed", err, true)
	}

	e.messagesSent.Add(1)
	return nil
}

// OnAgentResponse sets the agent response callback.
func (e *ElevenLabs) OnAgentResponse(fn func(text string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAgentResponse = fn
}

// OnUserTranscript sets the user transcript callback.
func (e *ElevenLabs) OnUserTranscript(fn func(text string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUserTranscript = fn
}

// OnError sets the error callback.
func (e *ElevenLabs) OnError(fn func(err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

func (e *ElevenLabs) setState(s ConnectionState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// write serializes writes to the connection. Gorilla conns allow only one
// concurrent writer.
func (e *ElevenLabs) write(conn *websocket.Conn, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(e.config.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// handleMessages processes incoming WebSocket messages.
func (e *ElevenLabs) handleMessages(ctx context.Context) {
	defer func() {
		e.mu.Lock()
		if e.state == StateConnected {
			e.state = StateDisconnected
		}
		e.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.mu.RLock()
		conn := e.conn
		e.mu.RUnlock()

		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(e.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.logger.Info("connection closed normally")
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			e.logger.Error("read error", "error", err)
			e.emitError(NewConnectionError("read failed", err, true))
			return
		}

		e.messagesReceived.Add(1)

		var msg elevenLabsIncoming
		if err := json.Unmarshal(data, &msg); err != nil {
			e.logger.Warn("failed to parse message", "error", err)
			continue
		}

		e.handleMessage(msg)
	}
}

// handleMessage processes a single message.
func (e *ElevenLabs) handleMessage(msg elevenLabsIncoming) {
	switch msg.Type {
	case "conversation_initiation_metadata":
		if msg.InitiationMetadata != nil {
			e.mu.Lock()
			e.conversationID = msg.InitiationMetadata.ConversationID
			e.mu.Unlock()
			e.logger.Debug("session initiated",
				"conversation_id", msg.InitiationMetadata.ConversationID,
			)
		}

	case "audio":
		// Handle both nested (audio_event) and flat formats
		audioData := msg.Audio
		if msg.AudioEvent != nil && msg.AudioEvent.AudioBase64 != "" {
			audioData = msg.AudioEvent.AudioBase64
		}
		if audioData == "" {
			return
		}
		audio, err := base64.StdEncoding.DecodeString(audioData)
		if err != nil {
			e.logger.Warn("failed to decode audio", "error", err)
			return
		}
		if e.config.Audio != nil {
			e.config.Audio.Play(audio)
		}

	case "agent_response":
		text := msg.Text
		if msg.AgentResponseEvent != nil {
			text = msg.AgentResponseEvent.AgentResponse
		}
		e.emitAgentResponse(text)

	case "user_transcript":
		text := msg.Text
		if msg.UserTranscriptEvent != nil {
			text = msg.UserTranscriptEvent.UserTranscript
		}
		e.emitUserTranscript(text)

	case "error":
		e.emitError(NewAPIError(0, msg.Code, msg.Message))

	case "ping":
		eventID := 0
		if msg.PingEvent != nil {
			eventID = msg.PingEvent.EventID
		}
		e.sendPong(eventID)

	default:
		e.logger.Debug("unhandled message type", "type", msg.Type)
	}
}

// sendPong responds to a ping message with the event_id.
func (e *ElevenLabs) sendPong(eventID int) {
	e.mu.RLock()
	conn := e.conn
	e.mu.RUnlock()

	if conn == nil {
		return
	}

	msg := map[string]any{
		"type":     "pong",
		"event_id": eventID,
	}
	data, _ := json.Marshal(msg)
	_ = e.write(conn, data)
}

// Emit helpers

func (e *ElevenLabs) emitAgentResponse(text string) {
	e.mu.RLock()
	fn := e.onAgentResponse
	e.mu.RUnlock()
	if fn != nil && text != "" {
		fn(text)
	}
}

func (e *ElevenLabs) emitUserTranscript(text string) {
	e.mu.RLock()
	fn := e.onUserTranscript
	e.mu.RUnlock()
	if fn != nil && text != "" {
		fn(text)
	}
}

func (e *ElevenLabs) emitError(err error) {
	e.mu.RLock()
	fn := e.onError
	e.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Message types for the ElevenLabs API

type elevenLabsInitiation struct {
	Type             string            `json:"type"`
	DynamicVariables map[string]string `json:"dynamic_variables,omitempty"`
}

type elevenLabsIncoming struct {
	Type    string `json:"type"`
	Audio   string `json:"audio,omitempty"`
	Text    string `json:"text,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// Nested event structures (ElevenLabs format)
	InitiationMetadata  *initiationMetadata  `json:"conversation_initiation_metadata_event,omitempty"`
	AudioEvent          *audioEvent          `json:"audio_event,omitempty"`
	AgentResponseEvent  *agentResponseEvent  `json:"agent_response_event,omitempty"`
	UserTranscriptEvent *userTranscriptEvent `json:"user_transcription_event,omitempty"`
	PingEvent           *pingEvent           `json:"ping_event,omitempty"`
}

type initiationMetadata struct {
	ConversationID string `json:"conversation_id"`
}

type audioEvent struct {
	EventID     int    `json:"event_id"`
	AudioBase64 string `json:"audio_base_64"`
}

type agentResponseEvent struct {
	AgentResponse string `json:"agent_response"`
}

type userTranscriptEvent struct {
	UserTranscript string `json:"user_transcript"`
}

type pingEvent struct {
	EventID int `json:"event_id"`
	PingMs  int `json:"ping_ms,omitempty"`
}

// Ensure ElevenLabs implements Provider.
var _ Provider = (*ElevenLabs)(nil)
