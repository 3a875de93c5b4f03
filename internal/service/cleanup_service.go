package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/certifyhq/certify-api/pkg/jobs"
	"github.com/certifyhq/certify-api/pkg/storage"
)

type cleanupStorage interface {
	CleanupOlderThan(maxAge time.Duration) ([]string, error)
	Delete(filename string) error
	Stats() (storage.DirectoryStats, error)
}

type cleanupMetrics interface {
	ObserveArtifactsCleaned(count int)
}

// CleanupService removes stale certificate artifacts. It runs a periodic age
// sweep and also handles per-file deletion jobs queued after downloads.
type CleanupService struct {
	storage  cleanupStorage
	metrics  cleanupMetrics
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewCleanupService constructs the cleanup service.
func NewCleanupService(store cleanupStorage, metrics cleanupMetrics, interval, maxAge time.Duration, logger *zap.Logger) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{storage: store, metrics: metrics, interval: interval, maxAge: maxAge, logger: logger}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *CleanupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Sugar().Infow("artifact cleanup started", "interval", s.interval, "max_age", s.maxAge)
	for {
		select {
		case <-ctx.Done():
			s.logger.Sugar().Infow("artifact cleanup stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes artifacts older than the configured age and returns how many
// were deleted.
func (s *CleanupService) Sweep() int {
	deleted, err := s.storage.CleanupOlderThan(s.maxAge)
	if err != nil {
		s.logger.Sugar().Errorw("artifact sweep failed", "error", err)
		return 0
	}
	if len(deleted) > 0 {
		s.logger.Sugar().Infow("artifact sweep removed files", "count", len(deleted))
		if s.metrics != nil {
			s.metrics.ObserveArtifactsCleaned(len(deleted))
		}
	}
	return len(deleted)
}

// HandleJob deletes the single artifact named in the job payload. Used as the
// handler for the post-download cleanup queue.
func (s *CleanupService) HandleJob(_ context.Context, job jobs.Job) error {
	relPath, ok := job.Payload.(string)
	if !ok || relPath == "" {
		return nil
	}
	if err := s.storage.Delete(relPath); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveArtifactsCleaned(1)
	}
	return nil
}

// Stats reports the artifact directory state for the admin endpoint.
func (s *CleanupService) Stats() (storage.DirectoryStats, error) {
	return s.storage.Stats()
}
