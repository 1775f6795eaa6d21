package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/qna-gateway/models"
	"github.com/upb/qna-gateway/services"
	"github.com/upb/qna-gateway/utils"
)

// AuditReader lists recent ask records
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]*models.AskRecord, error)
}

// AuditHandler serves the audit trail
type AuditHandler struct {
	reader AuditReader
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler. reader may be nil when auditing is off.
func NewAuditHandler(reader AuditReader, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		reader: reader,
		logger: logger,
	}
}

// HandleRecent handles GET /api/v1/audit/recent?limit=N
func (h *AuditHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		HandleServiceError(w, services.ErrAuditDisabled, h.logger)
		return
	}

	limit := utils.QueryInt(r, "limit", 50, 1, 500)
	records, err := h.reader.ListRecent(r.Context(), limit)
	if err != nil {
		HandleServiceError(w, services.WrapError(services.ErrorTypeInternal, services.ErrDatabaseError.Message, err), h.logger)
		return
	}

	if err := utils.WriteOK(w, records); err != nil {
		h.logger.Error("failed to write audit response", zap.Error(err))
	}
}
