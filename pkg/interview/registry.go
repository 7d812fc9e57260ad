package interview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhire/interviewd/pkg/conversation"
	"github.com/voxhire/interviewd/pkg/relay"
)

// Registry is the process-wide index of active sessions and their browser
// transports. One coarse lock guards both maps so a connect racing a
// start or cancel can never observe a half-updated view.
type Registry struct {
	maxQuestions int
	idleTimeout  time.Duration
	poll         time.Duration
	newProvider  ProviderFactory
	logger       *slog.Logger

	mu         sync.Mutex
	sessions   map[string]*Session
	transports map[string]relay.Transport
}

// NewRegistry creates a Registry. maxQuestions and idleTimeout apply to
// every session it starts; factory may be nil, selecting the ElevenLabs
// provider.
func NewRegistry(maxQuestions int, idleTimeout time.Duration, factory ProviderFactory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		factory = elevenLabsFactory(logger)
	}
	return &Registry{
		maxQuestions: maxQuestions,
		idleTimeout:  idleTimeout,
		poll:         pollInterval,
		newProvider:  factory,
		logger:       logger.With("component", "registry"),
		sessions:     make(map[string]*Session),
		transports:   make(map[string]relay.Transport),
	}
}

// elevenLabsFactory builds the production provider for a session.
func elevenLabsFactory(logger *slog.Logger) ProviderFactory {
	return func(cfg ProviderConfig) (conversation.Provider, error) {
		return conversation.NewElevenLabs(
			conversation.WithAPIKey(cfg.Credential),
			conversation.WithAgentID(cfg.AgentID),
			conversation.WithDynamicVariables(cfg.DynamicVariables),
			conversation.WithAudioInterface(cfg.Audio),
			conversation.WithLogger(logger),
		)
	}
}

// RegisterTransport records a connected transport for the session id.
// Re-registering the same id replaces the handle.
func (r *Registry) RegisterTransport(id string, t relay.Transport) {
	r.mu.Lock()
	r.transports[id] = t
	r.mu.Unlock()
	r.logger.Info("transport registered", "session_id", id)
}

// DeregisterTransport removes the transport for the id. A missing id is a
// no-op.
func (r *Registry) DeregisterTransport(id string) {
	r.mu.Lock()
	_, ok := r.transports[id]
	delete(r.transports, id)
	r.mu.Unlock()
	if ok {
		r.logger.Info("transport deregistered", "session_id", id)
	}
}

// TransportConnected reports whether a transport is registered for the id.
func (r *Registry) TransportConnected(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.transports[id]
	return ok
}

// StartSession validates preconditions, constructs the session bound to
// the id's transport, and starts its lifecycle goroutine. The id is
// returned as confirmation. Fails with ErrNoTransport when the browser
// has not connected, and with ErrSessionExists when a session is already
// active for the id.
func (r *Registry) StartSession(ctx context.Context, p Params) (string, error) {
	if p.MaxQuestions <= 0 {
		p.MaxQuestions = r.maxQuestions
	}
	if p.IdleTimeout <= 0 {
		p.IdleTimeout = r.idleTimeout
	}

	r.mu.Lock()
	t, connected := r.transports[p.ID]
	if !connected {
		r.mu.Unlock()
		return "", ErrNoTransport
	}
	if _, exists := r.sessions[p.ID]; exists {
		r.mu.Unlock()
		return "", ErrSessionExists
	}

	rl := relay.New(t, r.logger.With("session_id", p.ID))
	s := newSession(p, rl, t, r.newProvider, r, r.logger)
	r.sessions[p.ID] = s
	r.mu.Unlock()

	go s.Run(ctx)

	r.logger.Info("session started", "session_id", p.ID)
	return p.ID, nil
}

// CancelSession clears the session's running flag and removes it from the
// registry immediately, without waiting for its lifecycle goroutine to
// finish cleanup. Fails with ErrSessionNotFound for an unknown id.
func (r *Registry) CancelSession(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.Cancel()
	r.logger.Info("session cancelled", "session_id", id)
	return nil
}

// RouteInboundFrame delivers one caller audio frame to the session's
// relay. Frames for unknown sessions, or arriving while the relay is not
// capturing, are dropped with a log line.
func (r *Registry) RouteInboundFrame(id string, audio []byte) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("dropped frame for unknown session", "session_id", id)
		return
	}
	if !s.relay.HandleInbound(audio) {
		r.logger.Debug("dropped frame, relay not capturing", "session_id", id)
	}
}

// Session returns the active session for the id, if any.
func (r *Registry) Session(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// ActiveSessions returns the number of live sessions.
func (r *Registry) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ConnectedTransports returns the number of registered transports.
func (r *Registry) ConnectedTransports() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transports)
}

// CancelAll cancels every active session. Used on shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
}

// release removes the session and its transport entry. Called from
// session cleanup; idempotent. Deletions are by identity, not by id: a
// cancelled session's late cleanup must never evict a successor that
// reused the id, or the transport the successor is bound to.
func (r *Registry) release(s *Session) {
	r.mu.Lock()
	cur, active := r.sessions[s.id]
	if active && cur == s {
		delete(r.sessions, s.id)
		active = false
	}
	if !active && r.transports[s.id] == s.transport {
		delete(r.transports, s.id)
	}
	r.mu.Unlock()
}
