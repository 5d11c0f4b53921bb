package retention

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultMaxOperations = 5000
	DefaultMaxAge        = 7 * 24 * time.Hour
)

type Pruner interface {
	PruneOperations(ctx context.Context, max int, cutoff time.Time) (int64, error)
}

// Service keeps the operation log bounded by count and age.
type Service struct {
	repo   Pruner
	max    int
	maxAge time.Duration
	log    *slog.Logger
	now    func() time.Time
}

func NewService(repo Pruner, max int, maxAge time.Duration, logger *slog.Logger) *Service {
	if max <= 0 {
		max = DefaultMaxOperations
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Service{repo: repo, max: max, maxAge: maxAge, log: logger, now: time.Now}
}

func (s *Service) Run(ctx context.Context) {
	cutoff := s.now().UTC().Add(-s.maxAge)
	removed, err := s.repo.PruneOperations(ctx, s.max, cutoff)
	if err != nil {
		s.log.Error("retention cleanup failed", "err", err)
		return
	}
	if removed > 0 {
		s.log.Info("retention cleanup completed", "removed", removed, "cutoff", cutoff, "max", s.max)
	}
}
