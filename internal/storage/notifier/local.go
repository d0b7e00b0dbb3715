package notifier

import (
	"context"
	"sync"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/common/config"

	"go.uber.org/zap"
)

// LocalNotifier fans events out to watchers in the same process
type LocalNotifier struct {
	logger   *zap.Logger
	role     config.NotifierRole
	mu       sync.RWMutex
	watchers map[chan *Event]struct{}
}

var _ Notifier = (*LocalNotifier)(nil)

// NewLocalNotifier creates a new in-process notifier
func NewLocalNotifier(logger *zap.Logger, role config.NotifierRole) *LocalNotifier {
	return &LocalNotifier{
		logger:   logger.Named("notifier.local"),
		role:     role,
		watchers: make(map[chan *Event]struct{}),
	}
}

// Watch implements Notifier.Watch
func (n *LocalNotifier) Watch(ctx context.Context) (<-chan *Event, error) {
	if !n.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}

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
func (n *LocalNotifier) Notify(_ context.Context, e *Event) error {
	if !n.CanSend() {
		return cnst.ErrNotSender
	}
	n.broadcast(e)
	return nil
}

func (n *LocalNotifier) broadcast(e *Event) {
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

// CanReceive returns true if the notifier can receive updates
func (n *LocalNotifier) CanReceive() bool {
	return n.role == config.RoleReceiver || n.role == config.RoleBoth
}

// CanSend returns true if the notifier can send updates
func (n *LocalNotifier) CanSend() bool {
	return n.role == config.RoleSender || n.role == config.RoleBoth
}
