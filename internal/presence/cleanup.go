package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/storage"
	"github.com/vitrinhq/vitrin/pkg/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CleanupStale ends every session whose last activity is older than the
// stale window. Sessions are ended concurrently; one failing does not stop
// the others. It returns how many sessions were selected.
func (e *Engine) CleanupStale(ctx context.Context) int {
	now := e.now()
	n := e.sweep(ctx, storage.ActiveQuery{InactiveBefore: now.Add(-e.staleAfter)}, now, ReasonStale)
	e.recount(ctx)
	return n
}

// ForceCleanupAll ends every active session regardless of its activity
func (e *Engine) ForceCleanupAll(ctx context.Context) int {
	n := e.sweep(ctx, storage.ActiveQuery{}, e.now(), ReasonForced)
	e.recount(ctx)
	return n
}

// recount reports the active count after a sweep, so the gauge moves even
// when nobody watches the live feed
func (e *Engine) recount(ctx context.Context) {
	if _, err := e.Active(ctx); err != nil {
		e.logger.Debug("failed to count active visitors after cleanup", zap.Error(err))
	}
}

func (e *Engine) sweep(ctx context.Context, q storage.ActiveQuery, now time.Time, reason string) int {
	scope := trace.Tracer(cnst.TracePresence).Start(ctx, cnst.SpanCleanup)
	defer scope.End()
	ctx = scope.Ctx

	selected, err := e.active.List(ctx, q)
	if err != nil {
		scope.Fail(err)
		e.logger.Error("failed to list visitors for cleanup", zap.String("reason", reason), zap.Error(err))
		return 0
	}
	scope.WithAttrs(attribute.String("cleanup.reason", reason), attribute.Int("cleanup.selected", len(selected)))
	if len(selected) == 0 {
		return 0
	}

	var (
		wg      sync.WaitGroup
		removed atomic.Int64
	)
	for _, v := range selected {
		wg.Add(1)
		task := func(id string) func() {
			return func() {
				defer wg.Done()
				if e.expire(ctx, id, now, q.Matches) {
					removed.Add(1)
				}
			}
		}(v.SessionID)
		if err := e.pool.Submit(task); err != nil {
			// pool released or overloaded, run it here
			e.logger.Debug("cleanup pool rejected task", zap.Error(err))
			task()
		}
	}
	wg.Wait()

	n := int(removed.Load())
	e.observer.Ended(reason, n)
	if n < len(selected) {
		e.logger.Warn("cleanup finished with failures",
			zap.String("reason", reason),
			zap.Int("selected", len(selected)),
			zap.Int("removed", n))
	} else {
		e.logger.Info("cleanup finished", zap.String("reason", reason), zap.Int("removed", n))
	}
	return len(selected)
}

// scheduleCleanup runs a stale sweep after delay unless one is already
// running or the engine is closing.
func (e *Engine) scheduleCleanup(delay time.Duration) {
	e.spawn(func() {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-e.done:
				return
			}
		}
		if !e.sweeping.CompareAndSwap(false, true) {
			return
		}
		defer e.sweeping.Store(false)
		e.CleanupStale(context.Background())
	})
}
