package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/vitrinhq/vitrin/internal/visitor"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrInvalidDatabaseType is returned for an unsupported database dialect
	ErrInvalidDatabaseType = errors.New("invalid database type")
)

// ActiveQuery filters the active collection
type ActiveQuery struct {
	// InactiveBefore selects visitors whose last activity is strictly older; zero selects all
	InactiveBefore time.Time
}

// Matches reports whether v is selected by q
func (q ActiveQuery) Matches(v *visitor.Visitor) bool {
	return q.InactiveBefore.IsZero() || v.LastActivity.Before(q.InactiveBefore)
}

// ActiveRepository stores live visitor sessions keyed by session id
type ActiveRepository interface {
	// Put creates or replaces the document
	Put(ctx context.Context, v *visitor.Visitor) error
	// Get returns ErrNotFound when the document does not exist
	Get(ctx context.Context, sessionID string) (*visitor.Visitor, error)
	// Update applies fn to the stored document atomically; ErrNotFound when missing
	Update(ctx context.Context, sessionID string, fn func(v *visitor.Visitor)) error
	// Delete removes the document; deleting a missing document is not an error
	Delete(ctx context.Context, sessionID string) error
	// DeleteIf removes the document only if cond holds for its current state,
	// checked and deleted atomically. It returns the removed document, nil when
	// cond rejected it, or ErrNotFound. A nil cond always deletes.
	DeleteIf(ctx context.Context, sessionID string, cond func(v *visitor.Visitor) bool) (*visitor.Visitor, error)
	// List returns the selected visitors ordered by last activity, newest first
	List(ctx context.Context, q ActiveQuery) ([]*visitor.Visitor, error)
}

// HistoryRepository stores the append-only visitor history keyed by session id
type HistoryRepository interface {
	Put(ctx context.Context, r *visitor.HistoryRecord) error
	Get(ctx context.Context, sessionID string) (*visitor.HistoryRecord, error)
	Update(ctx context.Context, sessionID string, fn func(r *visitor.HistoryRecord)) error
	// ListSince returns records entered at or after since, newest first
	ListSince(ctx context.Context, since time.Time) ([]*visitor.HistoryRecord, error)
}

// Store groups the two collections of one backend
type Store interface {
	Active() ActiveRepository
	History() HistoryRepository
	Close() error
}

func sortByLastActivity(vs []*visitor.Visitor) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].LastActivity.Equal(vs[j].LastActivity) {
			return vs[i].SessionID < vs[j].SessionID
		}
		return vs[i].LastActivity.After(vs[j].LastActivity)
	})
}

func sortByEnteredAt(rs []*visitor.HistoryRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].EnteredAt.Equal(rs[j].EnteredAt) {
			return rs[i].SessionID < rs[j].SessionID
		}
		return rs[i].EnteredAt.After(rs[j].EnteredAt)
	})
}
