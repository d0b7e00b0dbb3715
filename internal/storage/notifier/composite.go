package notifier

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// CompositeNotifier implements Notifier by combining multiple notifiers
type CompositeNotifier struct {
	logger    *zap.Logger
	notifiers []Notifier
	mu        sync.RWMutex
	watchers  map[chan *Event]struct{}
}

var _ Notifier = (*CompositeNotifier)(nil)

// NewCompositeNotifier creates a new composite notifier. Receiving notifiers
// are watched until ctx is done.
func NewCompositeNotifier(ctx context.Context, logger *zap.Logger, notifiers ...Notifier) *CompositeNotifier {
	n := &CompositeNotifier{
		logger:    logger.Named("notifier.composite"),
		notifiers: notifiers,
		watchers:  make(map[chan *Event]struct{}),
	}

	if n.CanReceive() {
		n.watch(ctx)
	}
	return n
}

func (n *CompositeNotifier) watch(ctx context.Context) {
	for _, notifier := range n.notifiers {
		if !notifier.CanReceive() {
			continue
		}

		notifierCh, err := notifier.Watch(ctx)
		if err != nil {
			n.logger.Error("failed to watch underlying notifier", zap.Error(err))
			continue
		}

		go func(notifierCh <-chan *Event) {
			for {
				select {
				case e, ok := <-notifierCh:
					if !ok {
						return
					}
					n.notifyWatchers(e)
				case <-ctx.Done():
					return
				}
			}
		}(notifierCh)
	}
}

func (n *CompositeNotifier) notifyWatchers(e *Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for watcher := range n.watchers {
		select {
		case watcher <- e:
		default:
			n.logger.Debug("watcher channel is full, skipping notification",
				zap.String("session_id", e.SessionID))
		}
	}
}

// Watch implements Notifier.Watch
func (n *CompositeNotifier) Watch(ctx context.Context) (<-chan *Event, error) {
	ch := make(chan *Event, watcherBuffer)
	n.mu.Lock()
	n.watchers[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.watchers, ch)
		close(ch)
	}()

	return ch, nil
}

// Notify implements Notifier.Notify
func (n *CompositeNotifier) Notify(ctx context.Context, e *Event) error {
	var lastErr error
	for _, notifier := range n.notifiers {
		if !notifier.CanSend() {
			continue
		}
		if err := notifier.Notify(ctx, e); err != nil {
			lastErr = err
			n.logger.Error("failed to notify update", zap.Error(err))
		}
	}
	return lastErr
}

// CanReceive returns true if any underlying notifier can receive updates
func (n *CompositeNotifier) CanReceive() bool {
	for _, notifier := range n.notifiers {
		if notifier.CanReceive() {
			return true
		}
	}
	return false
}

// CanSend returns true if any underlying notifier can send updates
func (n *CompositeNotifier) CanSend() bool {
	for _, notifier := range n.notifiers {
		if notifier.CanSend() {
			return true
		}
	}
	return false
}
