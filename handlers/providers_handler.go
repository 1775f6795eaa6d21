package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/qna-gateway/services/routing"
	"github.com/upb/qna-gateway/utils"
)

// RoutingStatus exposes the resolved routing policy
type RoutingStatus interface {
	Status(ctx context.Context) routing.Status
}

// ProvidersHandler reports provider routing state
type ProvidersHandler struct {
	status RoutingStatus
	logger *zap.Logger
}

// NewProvidersHandler creates a new ProvidersHandler
func NewProvidersHandler(status RoutingStatus, logger *zap.Logger) *ProvidersHandler {
	return &ProvidersHandler{
		status: status,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/providers
func (h *ProvidersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.status.Status(r.Context())); err != nil {
		h.logger.Error("failed to write providers response", zap.Error(err))
	}
}
