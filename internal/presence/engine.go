// Package presence tracks who is on the storefront right now and keeps the
// history of every visit. The engine owns the two visitor collections: it
// writes a session to both on registration, keeps it alive on heartbeats,
// seals the history record when the session ends and sweeps away sessions
// that went silent.
package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/geo"
	"github.com/vitrinhq/vitrin/internal/storage"
	"github.com/vitrinhq/vitrin/internal/storage/notifier"
	"github.com/vitrinhq/vitrin/internal/visitor"
	"github.com/vitrinhq/vitrin/pkg/trace"
	"github.com/vitrinhq/vitrin/pkg/utils"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultStaleAfter   = 2 * time.Minute
	DefaultCleanupDelay = time.Second
	DefaultWorkers      = 16
	DefaultHistoryHours = 24

	maxPageLen     = 512
	maxReferrerLen = 2048
	maxAgentLen    = 1024
	maxLanguageLen = 32
)

// Observer results
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultFailed   = "failed"
	ResultIPFailed = "ip_failed"
)

// End reasons
const (
	ReasonExit   = "exit"
	ReasonStale  = "stale"
	ReasonForced = "forced"
)

// HeartbeatResult is the outcome of a heartbeat
type HeartbeatResult int

const (
	HeartbeatOK HeartbeatResult = iota
	HeartbeatNotFound
	HeartbeatFailed
)

func (r HeartbeatResult) String() string {
	switch r {
	case HeartbeatOK:
		return ResultOK
	case HeartbeatNotFound:
		return ResultNotFound
	default:
		return ResultFailed
	}
}

// Engine is the presence service. It is safe for concurrent use.
type Engine struct {
	logger   *zap.Logger
	active   storage.ActiveRepository
	history  storage.HistoryRepository
	notifier notifier.Notifier
	enricher Enricher
	observer Observer
	hook     EnrichmentHook
	clock    Clock

	staleAfter   time.Duration
	cleanupDelay time.Duration
	workers      int
	pool         *ants.Pool

	mu       sync.RWMutex // guards closed against tasks.Add
	closed   bool
	tasks    sync.WaitGroup
	sweeping atomic.Bool
	done     chan struct{}
}

// New creates an engine over store. A nil enricher leaves every visitor at
// cnst.Unknown without any network lookup.
func New(logger *zap.Logger, store storage.Store, ntf notifier.Notifier, enricher Enricher, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:       logger.Named("presence"),
		active:       store.Active(),
		history:      store.History(),
		notifier:     ntf,
		enricher:     enricher,
		observer:     nopObserver{},
		clock:        systemClock{},
		staleAfter:   DefaultStaleAfter,
		cleanupDelay: DefaultCleanupDelay,
		workers:      DefaultWorkers,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := ants.NewPool(e.workers, ants.WithPanicHandler(func(p any) {
		e.logger.Error("cleanup task panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return e, nil
}

// StaleAfter returns the inactivity window
func (e *Engine) StaleAfter() time.Duration {
	return e.staleAfter
}

// Close stops scheduling background work and waits for what is in flight
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.done)
	e.mu.Unlock()

	e.tasks.Wait()
	e.pool.Release()
}

// spawn runs fn in a tracked goroutine; it refuses once the engine is closed
func (e *Engine) spawn(fn func()) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		fn()
	}()
	return true
}

func (e *Engine) now() time.Time {
	return e.clock.Now().Truncate(time.Millisecond)
}

// Register records a new session in the active and history collections and
// returns the stored visitor. Location fields start as cnst.Loading and are
// filled in by a background lookup. It returns nil if the session could not
// be stored; a half-written session is rolled back.
func (e *Engine) Register(ctx context.Context, sessionID string, env visitor.Environment) *visitor.Visitor {
	scope := trace.Tracer(cnst.TracePresence).Start(ctx, cnst.SpanRegister)
	defer scope.End()
	ctx = scope.Ctx

	now := e.now()
	if sessionID == "" {
		sessionID = visitor.NewSessionID(now)
	}
	scope.WithAttrs(attribute.String("visitor.session_id", sessionID))

	v := newVisitor(sessionID, env, now)
	if err := e.active.Put(ctx, v); err != nil {
		scope.Fail(err)
		e.logger.Error("failed to store active visitor", zap.String("session_id", sessionID), zap.Error(err))
		e.observer.Registered(false)
		return nil
	}
	if err := e.history.Put(ctx, visitor.NewHistoryRecord(v)); err != nil {
		scope.Fail(err)
		e.logger.Error("failed to store visitor history, rolling back", zap.String("session_id", sessionID), zap.Error(err))
		if derr := e.active.Delete(ctx, sessionID); derr != nil {
			e.logger.Error("failed to roll back active visitor", zap.String("session_id", sessionID), zap.Error(derr))
		}
		e.observer.Registered(false)
		return nil
	}

	e.publish(ctx, cnst.CollectionActive, cnst.ActionCreate, sessionID)
	e.observer.Registered(true)
	e.logger.Debug("visitor registered",
		zap.String("session_id", sessionID),
		zap.String("device", v.Device),
		zap.String("page", v.CurrentPage))

	e.enrich(ctx, sessionID, env.ClientIP)
	e.scheduleCleanup(e.cleanupDelay)
	return v.Clone()
}

func newVisitor(sessionID string, env visitor.Environment, now time.Time) *visitor.Visitor {
	dev := visitor.Classify(env.UserAgent)
	referrer := utils.Truncate(env.Referrer, maxReferrerLen)
	if referrer == "" {
		referrer = cnst.Direct
	}
	return &visitor.Visitor{
		SessionID:    sessionID,
		IP:           cnst.Loading,
		Device:       dev.Class,
		Browser:      dev.Browser,
		OS:           dev.OS,
		UserAgent:    utils.Truncate(env.UserAgent, maxAgentLen),
		Language:     utils.FirstNonEmpty(utils.Truncate(env.Language, maxLanguageLen), cnst.DefaultLanguage),
		ScreenWidth:  max(env.ScreenWidth, 0),
		ScreenHeight: max(env.ScreenHeight, 0),
		City:         cnst.Loading,
		Country:      cnst.Loading,
		Region:       cnst.Loading,
		CurrentPage:  utils.FirstNonEmpty(utils.Truncate(env.Path, maxPageLen), cnst.DefaultPage),
		Referrer:     referrer,
		EnteredAt:    now,
		LastActivity: now,
		IsActive:     true,
	}
}

// Heartbeat marks the session as alive and records the page it is on. An
// empty page keeps the current one.
func (e *Engine) Heartbeat(ctx context.Context, sessionID, page string) HeartbeatResult {
	scope := trace.Tracer(cnst.TracePresence).Start(ctx, cnst.SpanHeartbeat)
	defer scope.End()
	ctx = scope.Ctx
	scope.WithAttrs(attribute.String("visitor.session_id", sessionID))

	if sessionID == "" {
		e.observer.Heartbeat(ResultNotFound)
		return HeartbeatNotFound
	}

	now := e.now()
	page = utils.Truncate(page, maxPageLen)
	err := e.active.Update(ctx, sessionID, func(v *visitor.Visitor) {
		if page != "" {
			v.CurrentPage = page
		}
		if now.After(v.LastActivity) {
			v.LastActivity = now
		}
	})

	var res HeartbeatResult
	switch {
	case err == nil:
		res = HeartbeatOK
		e.publish(ctx, cnst.CollectionActive, cnst.ActionUpdate, sessionID)
	case errors.Is(err, storage.ErrNotFound):
		res = HeartbeatNotFound
	default:
		res = HeartbeatFailed
		scope.Fail(err)
		e.logger.Warn("heartbeat failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	e.observer.Heartbeat(res.String())
	return res
}

// End closes the session: the history record is sealed and the active one
// removed. Ending an unknown or already ended session does nothing harmful.
func (e *Engine) End(ctx context.Context, sessionID string) {
	scope := trace.Tracer(cnst.TracePresence).Start(ctx, cnst.SpanEnd)
	defer scope.End()
	ctx = scope.Ctx
	scope.WithAttrs(attribute.String("visitor.session_id", sessionID))

	if sessionID == "" {
		return
	}

	if e.expire(ctx, sessionID, e.now(), nil) {
		e.observer.Ended(ReasonExit, 1)
	}
}

// expire deletes the active record of sessionID if cond still holds for its
// stored state, then seals the history record. The check and the delete are
// one atomic step, so a heartbeat that lands after the record was selected
// keeps the session alive. A missing active record still gets its history
// sealed. It reports whether an active record was removed.
func (e *Engine) expire(ctx context.Context, sessionID string, now time.Time, cond func(v *visitor.Visitor) bool) bool {
	last, err := e.active.DeleteIf(ctx, sessionID, cond)
	switch {
	case err == nil && last == nil:
		return false
	case err == nil:
		e.publish(ctx, cnst.CollectionActive, cnst.ActionDelete, sessionID)
	case errors.Is(err, storage.ErrNotFound):
	default:
		e.logger.Warn("failed to delete active visitor", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}

	err = e.history.Update(ctx, sessionID, func(r *visitor.HistoryRecord) {
		if last != nil && r.ExitedAt == nil {
			if last.LastActivity.After(r.LastActivity) {
				r.LastActivity = last.LastActivity
			}
			if last.CurrentPage != "" {
				r.CurrentPage = last.CurrentPage
			}
		}
		r.Seal(now)
	})
	switch {
	case err == nil:
		e.publish(ctx, cnst.CollectionHistory, cnst.ActionUpdate, sessionID)
	case errors.Is(err, storage.ErrNotFound):
	default:
		e.logger.Warn("failed to seal visitor history", zap.String("session_id", sessionID), zap.Error(err))
	}
	return last != nil
}

// Active returns the non-stale visitors, most recently active first. The
// observer gets the count of every successful read.
func (e *Engine) Active(ctx context.Context) ([]*visitor.Visitor, error) {
	all, err := e.active.List(ctx, storage.ActiveQuery{})
	if err != nil {
		return nil, err
	}
	out := e.fresh(all, e.now())
	e.observer.ActiveVisitors(len(out))
	return out, nil
}

func (e *Engine) fresh(all []*visitor.Visitor, now time.Time) []*visitor.Visitor {
	out := make([]*visitor.Visitor, 0, len(all))
	for _, v := range all {
		if !v.IsStale(now, e.staleAfter) {
			out = append(out, v)
		}
	}
	return out
}

// History returns the sessions that entered within the last windowHours hours,
// newest first. A non-positive window means the last 24 hours. A failed read
// is logged and yields an empty list together with the error.
func (e *Engine) History(ctx context.Context, windowHours int) ([]*visitor.HistoryRecord, error) {
	scope := trace.Tracer(cnst.TracePresence).Start(ctx, cnst.SpanHistory)
	defer scope.End()

	if windowHours <= 0 {
		windowHours = DefaultHistoryHours
	}
	scope.WithAttrs(attribute.Int("history.hours", windowHours))

	since := e.now().Add(-time.Duration(windowHours) * time.Hour)
	records, err := e.history.ListSince(scope.Ctx, since)
	if err != nil {
		scope.Fail(err)
		e.logger.Warn("failed to read visitor history", zap.Int("hours", windowHours), zap.Error(err))
		return []*visitor.HistoryRecord{}, err
	}
	return records, nil
}

func (e *Engine) publish(ctx context.Context, collection string, action cnst.ActionType, sessionID string) {
	if e.notifier == nil || !e.notifier.CanSend() {
		return
	}
	err := e.notifier.Notify(ctx, &notifier.Event{
		Collection: collection,
		Action:     action,
		SessionID:  sessionID,
		At:         e.now(),
	})
	if err != nil {
		e.logger.Warn("failed to publish visitor event",
			zap.String("collection", collection),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

// enrich resolves the location in the background. The task outlives the
// request that registered the visitor.
func (e *Engine) enrich(ctx context.Context, sessionID, clientIP string) {
	ctx = context.WithoutCancel(ctx)
	e.spawn(func() {
		loc := geo.UnknownLocation()
		var err error
		if e.enricher != nil {
			loc, err = e.enricher.Enrich(ctx, clientIP)
		}
		e.observer.Enriched(enrichResult(err))
		if err != nil {
			e.logger.Info("visitor enrichment degraded", zap.String("session_id", sessionID), zap.Error(err))
		}

		apply := func(v *visitor.Visitor) { loc.Apply(v) }
		aerr := e.active.Update(ctx, sessionID, apply)
		switch {
		case aerr == nil:
			e.publish(ctx, cnst.CollectionActive, cnst.ActionUpdate, sessionID)
		case errors.Is(aerr, storage.ErrNotFound):
		default:
			e.logger.Warn("failed to store visitor location", zap.String("session_id", sessionID), zap.Error(aerr))
		}
		herr := e.history.Update(ctx, sessionID, func(r *visitor.HistoryRecord) { loc.Apply(&r.Visitor) })
		if herr != nil && !errors.Is(herr, storage.ErrNotFound) {
			e.logger.Warn("failed to store visitor history location", zap.String("session_id", sessionID), zap.Error(herr))
		}

		if e.hook != nil {
			e.hook(sessionID, loc, err)
		}
	})
}

func enrichResult(err error) string {
	if err == nil {
		return ResultOK
	}
	var se *geo.StageError
	if errors.As(err, &se) && se.Stage == geo.StageIP {
		return ResultIPFailed
	}
	return ResultFailed
}
