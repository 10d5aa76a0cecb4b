package topup

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically fails Pending records whose payer never came back from
// the bank. Without it an abandoned attempt would stay Pending forever.
type Sweeper struct {
	repo     Repository
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper builds a sweeper that fails Pending records older than ttl,
// checking every interval.
func NewSweeper(repo Repository, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{repo: repo, ttl: ttl, interval: interval, logger: logger}
}

// Run blocks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)
	swept, err := s.repo.FailOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("pending topup sweep failed", slog.Any("error", err))
		return
	}
	if swept > 0 {
		s.logger.Info("failed abandoned pending topups",
			slog.Int64("count", swept),
			slog.Time("cutoff", cutoff))
	}
}
