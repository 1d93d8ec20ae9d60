package artifacts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically evicts expired artifacts.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper constructs a sweeper. A non-positive interval disables it.
func NewSweeper(store Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, interval: interval, logger: logger, now: time.Now}
}

// Start launches the background loop. Stop must be called to release it.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil || s.store == nil || s.interval <= 0 {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	ticker := time.NewTicker(s.interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	removed, err := s.store.Sweep(runCtx, s.now().UTC())
	if err != nil {
		s.logger.Error("artifact sweep error", zap.Error(err))
		return removed
	}
	if removed > 0 {
		s.logger.Info("artifact sweep removed artifacts", zap.Int("count", removed))
	}
	return removed
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}
