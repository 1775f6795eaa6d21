package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/upb/qna-gateway/services/providers"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent"
	defaultModel   = "gemini-2.5-flash-lite"
)

// GeminiAdapter implements the Provider interface for the Generative Language API
type GeminiAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewGeminiAdapter creates a new Gemini adapter
func NewGeminiAdapter(config providers.ProviderConfig) *GeminiAdapter {
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

	return &GeminiAdapter{
		config:     config,
		httpClient: providers.NewHTTPClient(config),
	}
}

// Build is a providers.ProviderBuilder for the registry
func Build(config providers.ProviderConfig) (providers.Provider, error) {
	return NewGeminiAdapter(config), nil
}

// ID returns the provider id
func (a *GeminiAdapter) ID() providers.ProviderID {
	return providers.Gemini
}

// Config returns the adapter configuration
func (a *GeminiAdapter) Config() providers.ProviderConfig {
	return a.config
}

// Generate calls generateContent and joins the text parts of the first candidate
func (a *GeminiAdapter) Generate(ctx context.Context, model string, req providers.RequestSpec) (string, error) {
	if !a.config.HasCredential() {
		return "", providers.ErrCredentialMissing
	}
	if model == "" {
		model = a.config.Model
	}

	reqBody, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return "", providers.NewProviderError(a.ID(), "marshal_error", "failed to marshal request", 0, err)
	}

	endpoint := a.endpoint(model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", providers.NewProviderError(a.ID(), "request_error", "failed to create request", 0, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		// url.Error would leak the key embedded in the query string
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
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

	var genResp GenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", providers.NewProviderError(a.ID(), "bad_response", providers.Truncate(respBody, 200), 0, err)
	}
	if len(genResp.Candidates) == 0 {
		return "", providers.NewProviderError(a.ID(), "bad_response", providers.Truncate(respBody, 200), 0, nil)
	}

	var texts []string
	for _, part := range genResp.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}

	return strings.TrimSpace(strings.Join(texts, "\n")), nil
}

// endpoint expands the model template and appends the key
func (a *GeminiAdapter) endpoint(model string) string {
	base := strings.ReplaceAll(a.config.BaseURL, "{model}", url.PathEscape(model))
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "key=" + url.QueryEscape(a.config.APIKey)
}

// buildRequest flattens the system text and conversation into a single user turn
func (a *GeminiAdapter) buildRequest(req providers.RequestSpec) *GenerateRequest {
	return &GenerateRequest{
		Contents: []Content{
			{Role: "user", Parts: []Part{{Text: FlattenMessages(req.System, req.Messages)}}},
		},
		GenerationConfig: GenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
}

// FlattenMessages renders the prompt as [SYSTEM]/[ROLE] blocks separated by blank lines
func FlattenMessages(system string, messages []providers.Message) string {
	var chunks []string
	if sys := strings.TrimSpace(system); sys != "" {
		chunks = append(chunks, fmt.Sprintf("[SYSTEM]\n%s", sys))
	}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		chunks = append(chunks, fmt.Sprintf("[%s]\n%s", strings.ToUpper(role), strings.TrimSpace(m.Content)))
	}
	return strings.TrimSpace(strings.Join(chunks, "\n\n"))
}

// Gemini-specific request/response types

type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text,omitempty"`
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type GenerateResponse struct {
	Candidates []Candidate `json:"candidates"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}
