package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/qna-gateway/models"
	"github.com/upb/qna-gateway/repositories"
)

// Service writes ask records in the background.
// Record never blocks the caller and never returns a storage error.
type Service struct {
	repo         repositories.AskRecordRepository
	logger       *zap.Logger
	records      chan *models.AskRecord
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	started      bool
	stopped      bool
	mu           sync.Mutex
}

// Config holds configuration for the audit Service
type Config struct {
	BufferSize   int           // Size of the record buffer channel
	WorkerCount  int           // Number of concurrent writers
	WriteTimeout time.Duration // Upper bound for a single insert
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewService creates a new audit Service
func NewService(repo repositories.AskRecordRepository, logger *zap.Logger, config Config) *Service {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Service{
		repo:         repo,
		logger:       logger,
		records:      make(chan *models.AskRecord, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
	}
}

// Start starts the background writers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop drains pending records, giving up after timeout
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	close(s.records)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_records", len(s.records)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues a record for writing. Records are dropped, with a warning,
// when the service is not running or the buffer is full.
func (s *Service) Record(record *models.AskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		s.logger.Warn("audit service not running, dropping record",
			zap.String("request_id", record.RequestID))
		return
	}

	select {
	case s.records <- record:
	default:
		s.logger.Warn("audit buffer full, dropping record",
			zap.String("request_id", record.RequestID),
			zap.String("outcome", string(record.Outcome)))
	}
}

// ListRecent returns the newest records first
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*models.AskRecord, error) {
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for record := range s.records {
		if err := s.write(record); err != nil {
			s.logger.Error("failed to write ask record",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("request_id", record.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) write(record *models.AskRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	return s.repo.Insert(ctx, record)
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.records),
		WorkerCount:    s.workerCount,
		Started:        s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int
	PendingRecords int
	WorkerCount    int
	Started        bool
}
