package qna

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/qna-gateway/internal/observability"
	"github.com/upb/qna-gateway/models"
	"github.com/upb/qna-gateway/services"
	"github.com/upb/qna-gateway/services/providers"
	"github.com/upb/qna-gateway/services/routing"
	"github.com/upb/qna-gateway/utils"
)

// Answerer is the routing surface the service depends on
type Answerer interface {
	Ask(ctx context.Context, req providers.RequestSpec, opts ...routing.AskOption) (*routing.AnswerResult, error)
}

// Recorder receives one audit record per question
type Recorder interface {
	Record(record *models.AskRecord)
}

// Service validates questions, routes them and records the outcome
type Service struct {
	router   Answerer
	recorder Recorder
	logger   *zap.Logger
}

// NewService creates a QnA service. recorder may be nil.
func NewService(router Answerer, recorder Recorder, logger *zap.Logger) *Service {
	return &Service{
		router:   router,
		recorder: recorder,
		logger:   logger,
	}
}

// Ask answers req through the failover router
func (s *Service) Ask(ctx context.Context, req *AskRequest) (*AskResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = observability.ContextWithRequestID(ctx, requestID)
	}
	logger := observability.LoggerFromContext(ctx, s.logger)

	var opts []routing.AskOption
	if req.Provider != "" {
		id, err := providers.ParseProviderID(req.Provider)
		if err != nil {
			return nil, services.WrapError(services.ErrorTypeValidation, "invalid provider specified", err)
		}
		opts = append(opts, routing.WithProvider(id))
	}

	start := time.Now()
	result, err := s.router.Ask(ctx, req.toSpec(), opts...)
	elapsed := time.Since(start)

	if err != nil {
		s.record(s.failureRecord(requestID, err, elapsed))
		logger.Warn("question not answered", zap.Duration("latency", elapsed), zap.Error(err))
		return nil, mapRoutingError(err)
	}

	s.record(models.NewAskRecord(requestID, models.AskOutcomeAnswered).
		WithProvider(result.Provider.String()).
		WithAttempts(len(result.Attempts) + 1).
		WithLatency(elapsed))

	logger.Info("question answered",
		zap.String("provider", result.Provider.String()),
		zap.Int("failed_attempts", len(result.Attempts)),
		zap.Duration("latency", elapsed))

	return &AskResponse{
		Text:      result.Text,
		Provider:  result.Provider.String(),
		RequestID: requestID,
		Attempts:  summarize(result.Attempts),
	}, nil
}

func (s *Service) validate(req *AskRequest) error {
	if req == nil {
		return services.ErrInvalidInput
	}
	if err := utils.ValidateStruct(req); err != nil {
		return services.WrapError(services.ErrorTypeValidation, "invalid ask request", err).
			WithDetail("fields", utils.GetValidationFields(err))
	}

	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) != "" {
			return nil
		}
	}
	return services.WrapError(services.ErrorTypeValidation, services.ErrEmptyQuestion.Message, nil)
}

func (s *Service) record(rec *models.AskRecord) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(rec)
}

func (s *Service) failureRecord(requestID string, err error, elapsed time.Duration) *models.AskRecord {
	var exhausted *routing.ExhaustedError
	if errors.As(err, &exhausted) {
		return models.NewAskRecord(requestID, models.AskOutcomeExhausted).
			WithLastErrorKind(exhausted.Last.Kind.String()).
			WithAttempts(len(exhausted.Attempts)).
			WithLatency(elapsed)
	}
	return models.NewAskRecord(requestID, models.AskOutcomeNoCandidates).WithLatency(elapsed)
}

// mapRoutingError converts router errors into domain errors for the HTTP layer
func mapRoutingError(err error) error {
	if errors.Is(err, routing.ErrNoCandidates) {
		return services.WrapError(services.ErrorTypeUnavailable, services.ErrNoProviderCandidates.Message, err)
	}

	var exhausted *routing.ExhaustedError
	if errors.As(err, &exhausted) {
		return services.WrapError(services.ErrorTypeExternal, services.ErrProvidersExhausted.Message, err).
			WithDetail("last_provider", exhausted.Last.Provider.String()).
			WithDetail("last_kind", exhausted.Last.Kind.String()).
			WithDetail("attempts", len(exhausted.Attempts))
	}

	return services.WrapInternal("routing failed", err)
}

func summarize(failures []routing.FailureRecord) []AttemptSummary {
	out := make([]AttemptSummary, 0, len(failures))
	for _, f := range failures {
		summary := AttemptSummary{Provider: f.Provider.String(), Kind: f.Kind.String()}
		if f.Cause != nil {
			summary.Error = f.Cause.Error()
		}
		out = append(out, summary)
	}
	return out
}
