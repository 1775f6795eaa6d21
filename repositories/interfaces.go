package repositories

import (
	"context"

	"github.com/upb/qna-gateway/models"
)

// AskRecordRepository handles audit records of routed questions
type AskRecordRepository interface {
	// Insert stores a new record
	Insert(ctx context.Context, record *models.AskRecord) error

	// ListRecent returns the newest records first
	ListRecent(ctx context.Context, limit int) ([]*models.AskRecord, error)
}

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
