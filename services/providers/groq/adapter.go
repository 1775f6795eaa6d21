package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/upb/qna-gateway/services/providers"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel   = "llama-3.1-8b-instant"
)

// GroqAdapter implements the Provider interface for Groq's OpenAI-compatible API
type GroqAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewGroqAdapter creates a new Groq adapter
func NewGroqAdapter(config providers.ProviderConfig) *GroqAdapter {
	defaults := providers.DefaultProviderConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}

	return &GroqAdapter{
		config:     config,
		httpClient: providers.NewHTTPClient(config),
	}
}

// Build is a providers.ProviderBuilder for the registry
func Build(config providers.ProviderConfig) (providers.Provider, error) {
	return NewGroqAdapter(config), nil
}

// ID returns the provider id
func (a *GroqAdapter) ID() providers.ProviderID {
	return providers.Groq
}

// Config returns the adapter configuration
func (a *GroqAdapter) Config() providers.ProviderConfig {
	return a.config
}

// Generate performs a single non-streaming chat completion
func (a *GroqAdapter) Generate(ctx context.Context, model string, req providers.RequestSpec) (string, error) {
	if !a.config.HasCredential() {
		return "", providers.ErrCredentialMissing
	}
	if model == "" {
		model = a.config.Model
	}

	reqBody, err := json.Marshal(a.buildRequest(model, req))
	if err != nil {
		return "", providers.NewProviderError(a.ID(), "marshal_error", "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", providers.NewProviderError(a.ID(), "request_error", "failed to create request", 0, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", providers.NewProviderError(a.ID(), "connect error", "http request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", providers.NewProviderError(a.ID(), "read_error", "failed to read response", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode >= 300 {
		return "", providers.NewProviderError(a.ID(), "http_error", providers.Truncate(respBody, 200), httpResp.StatusCode, nil)
	}

	var groqResp ChatResponse
	if err := json.Unmarshal(respBody, &groqResp); err != nil {
		return "", providers.NewProviderError(a.ID(), "bad_response", providers.Truncate(respBody, 200), 0, err)
	}
	if len(groqResp.Choices) == 0 {
		return "", providers.NewProviderError(a.ID(), "bad_response", providers.Truncate(respBody, 200), 0, nil)
	}

	return strings.TrimSpace(groqResp.Choices[0].Message.Content), nil
}

// buildRequest converts the request to Groq's wire format, system message first
func (a *GroqAdapter) buildRequest(model string, req providers.RequestSpec) *ChatRequest {
	messages := make([]ChatMessage, 0, len(req.Messages)+1)
	messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	for _, msg := range req.Messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ChatMessage{Role: role, Content: msg.Content})
	}

	return &ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}
}

// Groq-specific request/response types

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}
