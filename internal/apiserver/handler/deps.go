package handler

import (
	"context"

	"github.com/vitrinhq/vitrin/internal/analytics"
	"github.com/vitrinhq/vitrin/internal/auth"
	"github.com/vitrinhq/vitrin/internal/presence"
	"github.com/vitrinhq/vitrin/internal/visitor"
)

// Presence is the part of the presence engine the handlers use
type Presence interface {
	Register(ctx context.Context, sessionID string, env visitor.Environment) *visitor.Visitor
	Heartbeat(ctx context.Context, sessionID, page string) presence.HeartbeatResult
	End(ctx context.Context, sessionID string)
	Active(ctx context.Context) ([]*visitor.Visitor, error)
	History(ctx context.Context, windowHours int) ([]*visitor.HistoryRecord, error)
	SubscribeActive(ctx context.Context, fn presence.ActiveHandler) (func(), error)
	CleanupStale(ctx context.Context) int
	ForceCleanupAll(ctx context.Context) int
}

// Reporter builds analytics reports
type Reporter interface {
	Report(ctx context.Context, r analytics.Range) (*analytics.Report, error)
}

// Authenticator checks the admin credential
type Authenticator interface {
	Login(username, password string) (*auth.Session, error)
}

var (
	_ Presence      = (*presence.Engine)(nil)
	_ Reporter      = (*analytics.Service)(nil)
	_ Authenticator = (*auth.Admin)(nil)
)
