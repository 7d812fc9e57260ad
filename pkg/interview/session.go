// Package interview owns the lifecycle of voice interview sessions: the
// per-session state machine and the process-wide registry that ties
// sessions to their browser transports.
package interview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxhire/interviewd/pkg/conversation"
	"github.com/voxhire/interviewd/pkg/protocol"
	"github.com/voxhire/interviewd/pkg/relay"
)

// Protocol constants. MaxQuestions and IdleTimeout defaults live in
// internal/config; the poll interval is fixed — it bounds how quickly a
// cancel or timeout is observed.
const (
	pollInterval = 100 * time.Millisecond

	// ClosingMessage is spoken-to-text sent to the candidate when the
	// question limit is reached.
	ClosingMessage = "Thank you for your time! This concludes our interview. We will review your responses and get back to you soon."
)

// State is the lifecycle state of a session.
type State int

const (
	// StateCreated indicates the session exists but Run has not started.
	StateCreated State = iota
	// StateRunning indicates the lifecycle loop is active.
	StateRunning
	// StateCompleted indicates the question limit was reached.
	StateCompleted
	// StateTimedOut indicates the idle window elapsed with no activity.
	StateTimedOut
	// StateCancelled indicates an external cancel stopped the session.
	StateCancelled
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProviderConfig carries everything a ProviderFactory needs to build a
// conversation provider for one session.
type ProviderConfig struct {
	// Credential authenticates against the conversation provider.
	Credential string

	// AgentID is the conversational agent to dial. It equals the session
	// id: the browser client and the agent share the identifier.
	AgentID string

	// DynamicVariables parameterize the agent's prompt.
	DynamicVariables map[string]string

	// Audio is the session's relay.
	Audio conversation.AudioInterface
}

// ProviderFactory builds a conversation provider. The registry installs
// the ElevenLabs factory in production; tests substitute a Mock.
type ProviderFactory func(cfg ProviderConfig) (conversation.Provider, error)

// Params describes one interview to start.
type Params struct {
	ID             string
	Credential     string
	Resume         string
	JobDescription string
	MaxQuestions   int
	IdleTimeout    time.Duration
}

// Session is one interview's server-side lifecycle. It owns exactly one
// relay and runs on its own goroutine; all mutable state is guarded by mu
// because the transport loop and provider callbacks mutate it
// concurrently with the lifecycle loop.
type Session struct {
	id             string
	credential     string
	resume         string
	jobDescription string
	maxQuestions   int
	idleTimeout    time.Duration
	poll           time.Duration

	relay       *relay.Relay
	transport   relay.Transport
	newProvider ProviderFactory
	registry    *Registry
	logger      *slog.Logger

	mu            sync.Mutex
	state         State
	running       bool
	questionCount int
	lastActivity  time.Time
	provider      conversation.Provider

	cleanupOnce sync.Once
}

// newSession is called by the registry, which owns session construction.
func newSession(p Params, rl *relay.Relay, t relay.Transport, factory ProviderFactory, reg *Registry, logger *slog.Logger) *Session {
	s := &Session{
		id:             p.ID,
		credential:     p.Credential,
		resume:         p.Resume,
		jobDescription: p.JobDescription,
		maxQuestions:   p.MaxQuestions,
		idleTimeout:    p.IdleTimeout,
		poll:           reg.poll,
		relay:          rl,
		transport:      t,
		newProvider:    factory,
		registry:       reg,
		logger:         logger.With("session_id", p.ID),
		state:          StateCreated,
		running:        true,
		lastActivity:   time.Now(),
	}
	rl.OnActivity(s.touch)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QuestionCount returns the number of agent responses so far.
func (s *Session) QuestionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionCount
}

// Relay returns the session's audio relay.
func (s *Session) Relay() *relay.Relay {
	return s.relay
}

// Cancel clears the running flag. The lifecycle loop observes it within
// one poll interval. Safe to call any number of times.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Run drives the interview to a terminal state and cleans up. It is
// started on its own goroutine by the registry and never panics outward:
// every provider fault funnels into cleanup.
func (s *Session) Run(ctx context.Context) {
	defer s.cleanup()

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	provider, err := s.newProvider(ProviderConfig{
		Credential: s.credential,
		AgentID:    s.id,
		DynamicVariables: map[string]string{
			"resume":          s.resume,
			"job_description": s.jobDescription,
			"session_id":      s.id,
		},
		Audio: s.relay,
	})
	if err != nil {
		s.logger.Error("provider setup failed", "error", err)
		s.setTerminal(StateCancelled)
		return
	}

	provider.OnAgentResponse(s.handleAgentResponse)
	provider.OnUserTranscript(s.handleUserTranscript)
	provider.OnError(func(err error) {
		s.logger.Error("provider fault", "error", err)
		s.Cancel()
	})

	s.mu.Lock()
	s.provider = provider
	s.mu.Unlock()

	if err := provider.Connect(ctx); err != nil {
		s.logger.Error("provider connect failed", "error", err)
		s.setTerminal(StateCancelled)
		return
	}

	s.logger.Info("interview started",
		"max_questions", s.maxQuestions,
		"idle_timeout", s.idleTimeout,
	)

	terminal := s.pollLoop(ctx)
	s.setTerminal(terminal)

	switch terminal {
	case StateCompleted:
		s.sendTranscript(protocol.RoleAgent, ClosingMessage)
		s.logger.Info("interview completed", "questions", s.QuestionCount())
	case StateTimedOut:
		s.logger.Info("interview timed out", "questions", s.QuestionCount())
	default:
		s.logger.Info("interview cancelled", "questions", s.QuestionCount())
	}
}

// pollLoop blocks until a terminal condition fires and reports which one.
func (s *Session) pollLoop(ctx context.Context) State {
	for {
		s.mu.Lock()
		running := s.running
		count := s.questionCount
		idle := time.Since(s.lastActivity)
		s.mu.Unlock()

		switch {
		case !running:
			return StateCancelled
		case count >= s.maxQuestions:
			return StateCompleted
		case idle >= s.idleTimeout:
			return StateTimedOut
		}

		select {
		case <-ctx.Done():
			return StateCancelled
		case <-time.After(s.poll):
		}
	}
}

// handleAgentResponse counts one question and refreshes the idle clock.
// The counter only ever increases and is clamped at the question limit:
// a burst of responses arriving within one poll window must not push it
// past the maximum while the session is still running.
func (s *Session) handleAgentResponse(text string) {
	s.mu.Lock()
	if s.questionCount < s.maxQuestions {
		s.questionCount++
	}
	s.lastActivity = time.Now()
	count := s.questionCount
	s.mu.Unlock()

	s.logger.Info("agent response", "question", count, "text", text)
	s.sendTranscript(protocol.RoleAgent, text)
}

func (s *Session) handleUserTranscript(text string) {
	s.touch()
	s.logger.Info("user transcript", "text", text)
	s.sendTranscript(protocol.RoleUser, text)
}

// touch refreshes the idle clock. Wired to the relay so inbound audio
// while capturing also counts as activity.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) setTerminal(state State) {
	s.mu.Lock()
	s.state = state
	s.running = false
	s.mu.Unlock()
}

// sendTranscript forwards a transcript line to the browser. Write
// failures are logged, never fatal.
func (s *Session) sendTranscript(role, text string) {
	if s.transport == nil || text == "" {
		return
	}
	if err := s.transport.WriteMessage(protocol.NewTranscript(role, text)); err != nil {
		s.logger.Warn("transcript write failed", "error", err)
	}
}

// cleanup releases the provider and removes the session from the
// registry. Idempotent: a timeout and a concurrent cancel may both reach
// it.
func (s *Session) cleanup() {
	s.cleanupOnce.Do(func() {
		s.relay.StopCapture()

		s.mu.Lock()
		provider := s.provider
		s.mu.Unlock()

		if provider != nil {
			if err := provider.Close(); err != nil {
				s.logger.Warn("provider close failed", "error", err)
			}
		}

		if s.registry != nil {
			s.registry.release(s)
		}
		s.logger.Info("session cleaned up")
	})
}
