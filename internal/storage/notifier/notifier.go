package notifier

import (
	"context"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
)

// Event describes one write to a visitor collection
type Event struct {
	Collection string          `json:"collection"`
	Action     cnst.ActionType `json:"action"`
	SessionID  string          `json:"sessionId"`
	At         time.Time       `json:"at"`
}

// Notifier is the change feed of the visitor collections
type Notifier interface {
	// Watch returns a channel that receives change events until ctx is done
	Watch(ctx context.Context) (<-chan *Event, error)

	// Notify publishes a change event
	Notify(ctx context.Context, e *Event) error

	// CanReceive returns true if the notifier can receive updates
	CanReceive() bool

	// CanSend returns true if the notifier can send updates
	CanSend() bool
}

// watcherBuffer is the per-watcher channel size. Subscribers re-read the
// collection on every event, so an event dropped on a full channel is covered
// by the ones still queued.
const watcherBuffer = 16
