package presence

import (
	"context"
	"errors"
	"sync"

	"github.com/vitrinhq/vitrin/internal/storage/notifier"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"go.uber.org/zap"
)

// ActiveHandler receives a full snapshot of the non-stale visitors
type ActiveHandler func(visitors []*visitor.Visitor)

// SubscribeActive calls fn with the current active visitors, then again after
// every change to the active collection. Changes arriving while a snapshot is
// being built are folded into the next one. Every delivery also schedules a
// stale sweep.
//
// The returned function stops the subscription and waits until fn is no
// longer running, so it must not be called from inside fn.
func (e *Engine) SubscribeActive(ctx context.Context, fn ActiveHandler) (func(), error) {
	if fn == nil {
		return nil, errors.New("nil active handler")
	}
	if e.notifier == nil || !e.notifier.CanReceive() {
		return nil, errors.New("notifier cannot deliver visitor changes")
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := e.notifier.Watch(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.deliver(ctx, fn)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if !coalesce(ctx, events) {
					return
				}
				e.deliver(ctx, fn)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// coalesce drains whatever is already queued; false means the feed closed
func coalesce(ctx context.Context, events <-chan *notifier.Event) bool {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return false
			}
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
}

func (e *Engine) deliver(ctx context.Context, fn ActiveHandler) {
	e.scheduleCleanup(0)

	visitors, err := e.Active(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Warn("failed to read active visitors for subscriber", zap.Error(err))
		}
		return
	}
	fn(visitors)
}
