package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dealhub/dealhub/internal/metrics"
)

// Sweeper periodically moves pending claims on expired deals to the expired
// status. It is the only writer of that status.
type Sweeper struct {
	claims   ClaimStore
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. A non-positive interval disables it.
func NewSweeper(claims ClaimStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		claims:   claims,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("claim expiry sweep disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	expired, err := s.claims.ExpireSweep(ctx, time.Now())
	if err != nil {
		s.logger.Error("claim expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		metrics.ClaimsExpiredTotal.Add(float64(expired))
		s.logger.Info("expired pending claims", zap.Int64("count", expired))
	}
}
