package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// ProviderID identifies one of the fixed answer backends
type ProviderID string

const (
	// Groq is the OpenAI-compatible Groq chat completions backend
	Groq ProviderID = "groq"

	// Gemini is the Google Generative Language backend
	Gemini ProviderID = "gemini"
)

// Known lists every provider the gateway can route to, in default preference order
var Known = []ProviderID{Groq, Gemini}

// ErrCredentialMissing is returned when a provider has no API key configured
var ErrCredentialMissing = errors.New("provider credential missing")

// ErrUnknownProvider is returned when a provider token is not one of Known
var ErrUnknownProvider = errors.New("unknown provider")

// String returns the provider token
func (id ProviderID) String() string {
	return string(id)
}

// IsKnown reports whether id is one of the fixed providers
func (id ProviderID) IsKnown() bool {
	for _, k := range Known {
		if k == id {
			return true
		}
	}
	return false
}

// ParseProviderID normalizes a token (trim, lowercase) and validates it
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	if !id.IsKnown() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return id, nil
}

// Provider is the uniform adapter contract every backend implements
type Provider interface {
	// ID returns the provider identifier
	ID() ProviderID

	// Config returns the static provider settings
	Config() ProviderConfig

	// Generate produces an answer for req using the given model
	Generate(ctx context.Context, model string, req RequestSpec) (string, error)
}

// Message is one role-tagged turn of the conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// RequestSpec is the immutable generation request passed through the router
type RequestSpec struct {
	// System instruction text
	System string `json:"system"`

	// Messages in conversation order
	Messages []Message `json:"messages"`

	// Temperature controls randomness
	Temperature float64 `json:"temperature"`

	// MaxTokens limits the answer length
	MaxTokens int `json:"max_tokens"`
}

// ProviderConfig holds static per-provider settings, read-only after startup
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL is the endpoint (gemini: a template containing {model})
	BaseURL string

	// Model is the default model identifier
	Model string

	// ConnectTimeout bounds dialing the endpoint
	ConnectTimeout time.Duration

	// Timeout bounds the whole HTTP exchange
	Timeout time.Duration

	// Additional headers
	Headers map[string]string
}

// HasCredential reports whether an API key is configured
func (c ProviderConfig) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// DefaultProviderConfig returns the per-attempt budgets shared by all adapters
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		ConnectTimeout: 8 * time.Second,
		Timeout:        15 * time.Second,
		Headers:        make(map[string]string),
	}
}

// NewHTTPClient builds a client honoring the connect and total timeouts of cfg
func NewHTTPClient(cfg ProviderConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider ProviderID

	// Code is a short machine-readable reason
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Code)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s http %d", e.Provider, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider ProviderID, code, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// Truncate shortens a response body for inclusion in error messages
func Truncate(body []byte, n int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > n {
		return s[:n]
	}
	return s
}
