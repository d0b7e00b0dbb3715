package presence

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval defines how often the sweeper ends stale sessions
const DefaultSweepInterval = time.Minute

// Sweeper periodically ends stale sessions so that abandoned visitors leave
// the active collection even when nobody registers or watches.
type Sweeper struct {
	engine   *Engine
	logger   *zap.Logger
	interval time.Duration
	running  *atomic.Bool
	stopChan chan struct{}
	stopped  *atomic.Bool
}

// NewSweeper creates a sweeper; a non-positive interval uses DefaultSweepInterval
func NewSweeper(engine *Engine, logger *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		engine:   engine,
		logger:   logger.Named("sweeper"),
		interval: interval,
		running:  &atomic.Bool{},
		stopChan: make(chan struct{}),
		stopped:  &atomic.Bool{},
	}
}

// Start begins sweeping until ctx is done or Stop is called
func (s *Sweeper) Start(ctx context.Context) {
	if s.stopped.Load() {
		return
	}
	if s.running.CompareAndSwap(false, true) {
		go s.loop(ctx)
		s.logger.Info("started stale visitor sweeper", zap.Duration("interval", s.interval))
	}
}

// Stop halts the sweeper; it cannot be restarted
func (s *Sweeper) Stop() {
	if s.running.CompareAndSwap(true, false) {
		if s.stopped.CompareAndSwap(false, true) {
			close(s.stopChan)
		}
		s.logger.Info("stopped stale visitor sweeper")
	}
}

// IsRunning returns whether the sweeper is running
func (s *Sweeper) IsRunning() bool {
	return s.running.Load()
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped due to context cancellation")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if n := s.engine.CleanupStale(ctx); n > 0 {
				s.logger.Debug("swept stale visitors", zap.Int("count", n))
			}
		}
	}
}
