package conversation

import (
	"log/slog"
	"time"
)

// Config holds configuration for conversation providers.
type Config struct {
	// APIKey is the authentication key for the provider.
	APIKey string

	// AgentID is the agent identifier to converse with.
	AgentID string

	// DynamicVariables are substituted into the agent's prompt templates
	// when the session is initiated (resume, job_description, ...).
	DynamicVariables map[string]string

	// RequiresAuth selects the signed-URL handshake. When true the
	// WebSocket URL is fetched through the REST API with the API key;
	// when false the agent is dialed directly as a public agent.
	RequiresAuth bool

	// BaseURL overrides the default WebSocket endpoint.
	BaseURL string

	// APIBaseURL overrides the default REST endpoint.
	APIBaseURL string

	// Timeout is the connection/handshake timeout.
	Timeout time.Duration

	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration

	// DialAttempts is the number of connection attempts before giving up.
	DialAttempts int

	// DialBackoff is the initial delay between connection attempts.
	DialBackoff time.Duration

	// Audio receives agent audio and drives caller capture. Optional.
	Audio AudioInterface

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 30 * time.Second,
		DialAttempts: 3,
		DialBackoff:  time.Second,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithAPIKey sets the API key. A non-empty key also enables the
// signed-URL handshake.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
		c.RequiresAuth = key != ""
	}
}

// WithAgentID sets the agent ID.
func WithAgentID(id string) Option {
	return func(c *Config) { c.AgentID = id }
}

// WithDynamicVariables sets the prompt variables for session initiation.
func WithDynamicVariables(vars map[string]string) Option {
	return func(c *Config) { c.DynamicVariables = vars }
}

// WithAudioInterface sets the audio sink/source for the session.
func WithAudioInterface(audio AudioInterface) Option {
	return func(c *Config) { c.Audio = audio }
}

// WithBaseURL overrides the WebSocket endpoint. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIBaseURL overrides the REST endpoint. Used in tests.
func WithAPIBaseURL(url string) Option {
	return func(c *Config) { c.APIBaseURL = url }
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithDialAttempts sets the number of dial attempts.
func WithDialAttempts(n int) Option {
	return func(c *Config) { c.DialAttempts = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.AgentID == "" {
		return ErrMissingAgentID
	}
	if c.RequiresAuth && c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
