package qna

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/qna-gateway/internal/observability"
	"github.com/upb/qna-gateway/models"
	"github.com/upb/qna-gateway/services"
	"github.com/upb/qna-gateway/services/providers"
	"github.com/upb/qna-gateway/services/routing"
)

// MockAnswerer is a mock implementation of Answerer
type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Ask(ctx context.Context, req providers.RequestSpec, opts ...routing.AskOption) (*routing.AnswerResult, error) {
	args := m.Called(ctx, req, len(opts))
	if res := args.Get(0); res != nil {
		return res.(*routing.AnswerResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type captureRecorder struct {
	mu      sync.Mutex
	records []*models.AskRecord
}

func (c *captureRecorder) Record(record *models.AskRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record)
}

func (c *captureRecorder) all() []*models.AskRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records
}

func newTestService(router Answerer) (*Service, *captureRecorder) {
	rec := &captureRecorder{}
	return NewService(router, rec, zap.NewNop()), rec
}

func TestService_Ask_Success(t *testing.T) {
	router := new(MockAnswerer)
	svc, rec := newTestService(router)

	router.On("Ask", mock.Anything, mock.MatchedBy(func(spec providers.RequestSpec) bool {
		return spec.Temperature == DefaultTemperature &&
			spec.MaxTokens == DefaultMaxTokens &&
			spec.System == "Answer briefly." &&
			len(spec.Messages) == 1 &&
			spec.Messages[0].Role == "user" &&
			spec.Messages[0].Content == "What is 2+2?"
	}), 0).Return(&routing.AnswerResult{Text: "4", Provider: providers.Groq}, nil)

	resp, err := svc.Ask(context.Background(), NewQuestion("Answer briefly.", "What is 2+2?"))
	require.NoError(t, err)

	assert.Equal(t, "4", resp.Text)
	assert.Equal(t, "groq", resp.Provider)
	assert.NotEmpty(t, resp.RequestID)
	assert.Empty(t, resp.Attempts)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.AskOutcomeAnswered, records[0].Outcome)
	assert.Equal(t, "groq", *records[0].Provider)
	assert.Equal(t, 1, records[0].Attempts)
	assert.Equal(t, resp.RequestID, records[0].RequestID)
	router.AssertExpectations(t)
}

func TestService_Ask_ExplicitParameters(t *testing.T) {
	router := new(MockAnswerer)
	svc, _ := newTestService(router)

	temp := 0.0
	maxTokens := 64
	req := &AskRequest{
		Messages:    []MessageInput{{Content: "Capital of Indonesia?"}},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Provider:    "Gemini",
	}

	router.On("Ask", mock.Anything, mock.MatchedBy(func(spec providers.RequestSpec) bool {
		return spec.Temperature == 0 && spec.MaxTokens == 64
	}), 1).Return(&routing.AnswerResult{
		Text:     "Jakarta",
		Provider: providers.Gemini,
		Attempts: []routing.FailureRecord{
			{Provider: providers.Groq, Kind: routing.KindTransient, Cause: errors.New("groq http 429: rate limited")},
		},
	}, nil)

	resp, err := svc.Ask(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "Jakarta", resp.Text)
	require.Len(t, resp.Attempts, 1)
	assert.Equal(t, AttemptSummary{Provider: "groq", Kind: "transient", Error: "groq http 429: rate limited"}, resp.Attempts[0])
	router.AssertExpectations(t)
}

func TestService_Ask_UsesContextRequestID(t *testing.T) {
	router := new(MockAnswerer)
	svc, rec := newTestService(router)

	router.On("Ask", mock.MatchedBy(func(ctx context.Context) bool {
		return observability.RequestIDFromContext(ctx) == "req-42"
	}), mock.Anything, 0).Return(&routing.AnswerResult{Text: "ok", Provider: providers.Gemini}, nil)

	ctx := observability.ContextWithRequestID(context.Background(), "req-42")
	resp, err := svc.Ask(ctx, NewQuestion("", "hi"))

	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, "req-42", rec.all()[0].RequestID)
}

func TestService_Ask_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  *AskRequest
	}{
		{name: "nil request", req: nil},
		{name: "no messages", req: &AskRequest{}},
		{name: "blank question", req: NewQuestion("sys", "   ")},
		{name: "unknown provider", req: &AskRequest{Messages: []MessageInput{{Content: "hi"}}, Provider: "openai"}},
		{name: "bad role", req: &AskRequest{Messages: []MessageInput{{Role: "tool", Content: "hi"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := new(MockAnswerer)
			svc, rec := newTestService(router)

			_, err := svc.Ask(context.Background(), tt.req)

			require.Error(t, err)
			assert.True(t, services.IsValidationError(err))
			router.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, rec.all())
		})
	}
}

func TestService_Ask_NoCandidates(t *testing.T) {
	router := new(MockAnswerer)
	svc, rec := newTestService(router)

	router.On("Ask", mock.Anything, mock.Anything, 0).Return(nil, routing.ErrNoCandidates)

	_, err := svc.Ask(context.Background(), NewQuestion("", "hi"))

	require.Error(t, err)
	assert.True(t, services.IsUnavailableError(err))
	assert.ErrorIs(t, err, routing.ErrNoCandidates)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.AskOutcomeNoCandidates, records[0].Outcome)
	assert.Nil(t, records[0].Provider)
}

func TestService_Ask_Exhausted(t *testing.T) {
	router := new(MockAnswerer)
	svc, rec := newTestService(router)

	last := routing.FailureRecord{Provider: providers.Gemini, Kind: routing.KindFatal, Cause: errors.New("gemini http 400: bad request")}
	exhausted := &routing.ExhaustedError{
		Last: last,
		Attempts: []routing.FailureRecord{
			{Provider: providers.Groq, Kind: routing.KindTransient, Cause: errors.New("quota exceeded")},
			last,
		},
	}
	router.On("Ask", mock.Anything, mock.Anything, 0).Return(nil, exhausted)

	_, err := svc.Ask(context.Background(), NewQuestion("", "hi"))

	require.Error(t, err)
	assert.True(t, services.IsExternalError(err))
	assert.ErrorIs(t, err, routing.ErrAllProvidersExhausted)

	details := services.GetErrorDetails(err)
	assert.Equal(t, "gemini", details["last_provider"])
	assert.Equal(t, "fatal", details["last_kind"])
	assert.Equal(t, 2, details["attempts"])

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, models.AskOutcomeExhausted, records[0].Outcome)
	assert.Equal(t, "fatal", *records[0].LastErrorKind)
	assert.Equal(t, 2, records[0].Attempts)
}

func TestService_Ask_UnexpectedError(t *testing.T) {
	router := new(MockAnswerer)
	svc := NewService(router, nil, zap.NewNop())

	router.On("Ask", mock.Anything, mock.Anything, 0).Return(nil, errors.New("boom"))

	_, err := svc.Ask(context.Background(), NewQuestion("", "hi"))
	assert.True(t, services.IsInternalError(err))
}

// TestService_Ask_WithRouter runs the service against the real router and stub providers.
func TestService_Ask_WithRouter(t *testing.T) {
	registry := providers.NewRegistry()
	require.NoError(t, registry.RegisterProvider(&staticProvider{id: providers.Groq, err: errors.New("groq http 429: too many requests")}))
	require.NoError(t, registry.RegisterProvider(&staticProvider{id: providers.Gemini, text: " Jakarta \n"}))

	router := routing.NewRouter(registry, routing.NewMemoryCooldown(), routing.DefaultRouterConfig(), zap.NewNop(), nil)
	svc, rec := newTestService(router)

	resp, err := svc.Ask(context.Background(), NewQuestion("Answer briefly.", "Capital of Indonesia?"))
	require.NoError(t, err)

	assert.Equal(t, "Jakarta", resp.Text)
	assert.Equal(t, "gemini", resp.Provider)
	require.Len(t, resp.Attempts, 1)
	assert.Equal(t, "transient", resp.Attempts[0].Kind)
	assert.Equal(t, 2, rec.all()[0].Attempts)

	_, err = svc.Ask(context.Background(), &AskRequest{Messages: []MessageInput{{Content: "again"}}, Provider: "groq"})
	require.Error(t, err)
	assert.True(t, services.IsExternalError(err))
}

type staticProvider struct {
	id   providers.ProviderID
	text string
	err  error
}

func (p *staticProvider) ID() providers.ProviderID { return p.id }

func (p *staticProvider) Config() providers.ProviderConfig {
	return providers.ProviderConfig{APIKey: "test-key", Model: "test-model"}
}

func (p *staticProvider) Generate(context.Context, string, providers.RequestSpec) (string, error) {
	return p.text, p.err
}
