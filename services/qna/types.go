package qna

import "github.com/upb/qna-gateway/services/providers"

const (
	// DefaultTemperature applies when a request leaves temperature unset
	DefaultTemperature = 0.7

	// DefaultMaxTokens applies when a request leaves max_tokens unset
	DefaultMaxTokens = 320
)

// AskRequest is the public question format
type AskRequest struct {
	System      string         `json:"system,omitempty" validate:"max=8000"`
	Messages    []MessageInput `json:"messages" validate:"required,min=1,max=64,dive"`
	Temperature *float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int           `json:"max_tokens,omitempty" validate:"omitempty,gte=1,lte=8192"`
	Provider    string         `json:"provider,omitempty" validate:"omitempty,provider"`
}

// MessageInput is one turn of the conversation
type MessageInput struct {
	Role    string `json:"role" validate:"omitempty,oneof=system user assistant"`
	Content string `json:"content" validate:"required,max=16000"`
}

// NewQuestion builds a single-turn request
func NewQuestion(system, question string) *AskRequest {
	return &AskRequest{
		System:   system,
		Messages: []MessageInput{{Role: "user", Content: question}},
	}
}

// AskResponse is returned for an answered question
type AskResponse struct {
	Text      string           `json:"text"`
	Provider  string           `json:"provider"`
	RequestID string           `json:"request_id"`
	Attempts  []AttemptSummary `json:"attempts"`
}

// AttemptSummary describes a provider that failed before the answer was produced
type AttemptSummary struct {
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

// toSpec converts the request into the router's immutable request, applying defaults
func (r *AskRequest) toSpec() providers.RequestSpec {
	spec := providers.RequestSpec{
		System:      r.System,
		Messages:    make([]providers.Message, 0, len(r.Messages)),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, m := range r.Messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		spec.Messages = append(spec.Messages, providers.Message{Role: role, Content: m.Content})
	}
	if r.Temperature != nil {
		spec.Temperature = *r.Temperature
	}
	if r.MaxTokens != nil {
		spec.MaxTokens = *r.MaxTokens
	}
	return spec
}
