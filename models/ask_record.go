package models

import (
	"time"

	"github.com/google/uuid"
)

// AskOutcome is the terminal state of one routed question
type AskOutcome string

const (
	AskOutcomeAnswered     AskOutcome = "answered"
	AskOutcomeExhausted    AskOutcome = "exhausted"
	AskOutcomeNoCandidates AskOutcome = "no_candidates"
)

// AskRecord is the audit entry for one routed question.
// It stores routing metadata only; prompt and answer text are never kept.
type AskRecord struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	RequestID     string     `json:"request_id" db:"request_id"`
	Provider      *string    `json:"provider,omitempty" db:"provider"` // nil unless answered
	Outcome       AskOutcome `json:"outcome" db:"outcome"`
	LastErrorKind *string    `json:"last_error_kind,omitempty" db:"last_error_kind"`
	Attempts      int        `json:"attempts" db:"attempts"`
	LatencyMs     int        `json:"latency_ms" db:"latency_ms"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the AskRecord model
func (AskRecord) TableName() string {
	return "ask_records"
}

// NewAskRecord creates a record stamped with a fresh id and the current time
func NewAskRecord(requestID string, outcome AskOutcome) *AskRecord {
	return &AskRecord{
		ID:        uuid.New(),
		RequestID: requestID,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
}

// WithProvider sets the answering provider
func (r *AskRecord) WithProvider(provider string) *AskRecord {
	r.Provider = &provider
	return r
}

// WithLastErrorKind sets the classification of the last failure
func (r *AskRecord) WithLastErrorKind(kind string) *AskRecord {
	r.LastErrorKind = &kind
	return r
}

// WithAttempts sets how many providers were considered
func (r *AskRecord) WithAttempts(attempts int) *AskRecord {
	r.Attempts = attempts
	return r
}

// WithLatency sets the end-to-end latency
func (r *AskRecord) WithLatency(d time.Duration) *AskRecord {
	r.LatencyMs = int(d.Milliseconds())
	return r
}
