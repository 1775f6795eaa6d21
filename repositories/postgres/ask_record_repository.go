package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/qna-gateway/models"
	"github.com/upb/qna-gateway/repositories"
)

// DefaultListLimit applies when ListRecent is called without a positive limit
const DefaultListLimit = 50

// AskRecordRepository implements the repositories.AskRecordRepository interface
type AskRecordRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAskRecordRepository creates a new ask record repository
func NewAskRecordRepository(db *DB, logger *zap.Logger) repositories.AskRecordRepository {
	return &AskRecordRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new ask record
func (r *AskRecordRepository) Insert(ctx context.Context, record *models.AskRecord) error {
	query := `
		INSERT INTO ask_records (
			id, request_id, provider, outcome, last_error_kind, attempts, latency_ms, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.RequestID,
		record.Provider,
		record.Outcome,
		record.LastErrorKind,
		record.Attempts,
		record.LatencyMs,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ask record: %w", err)
	}

	r.logger.Debug("ask record inserted",
		zap.String("id", record.ID.String()),
		zap.String("outcome", string(record.Outcome)))
	return nil
}

// ListRecent retrieves the newest records first
func (r *AskRecordRepository) ListRecent(ctx context.Context, limit int) ([]*models.AskRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, request_id, provider, outcome, last_error_kind, attempts, latency_ms, created_at
		FROM ask_records
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ask records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.AskRecord, 0, limit)
	for rows.Next() {
		var rec models.AskRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.Provider,
			&rec.Outcome,
			&rec.LastErrorKind,
			&rec.Attempts,
			&rec.LatencyMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ask record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ask records: %w", err)
	}

	return records, nil
}
