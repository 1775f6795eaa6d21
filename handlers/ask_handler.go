package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/qna-gateway/middleware"
	"github.com/upb/qna-gateway/services/qna"
	"github.com/upb/qna-gateway/utils"
)

// maxAskBodyBytes bounds the request body of POST /api/v1/ask
const maxAskBodyBytes = 1 << 20

// QnAService defines the interface for answering questions
type QnAService interface {
	Ask(ctx context.Context, req *qna.AskRequest) (*qna.AskResponse, error)
}

// AskHandler handles question answering requests
type AskHandler struct {
	service QnAService
	logger  *zap.Logger
}

// NewAskHandler creates a new AskHandler
func NewAskHandler(service QnAService, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAsk handles POST /api/v1/ask
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req qna.AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode ask request",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	resp, err := h.service.Ask(ctx, &req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write ask response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
