package presence

import (
	"context"
	"time"

	"github.com/vitrinhq/vitrin/internal/visitor"
)

// Clock supplies the current time; tests inject a controllable one
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Enricher resolves where a visitor connects from. It must always return a
// complete location, using cnst.Unknown for anything it could not resolve.
type Enricher interface {
	Enrich(ctx context.Context, clientIP string) (visitor.Location, error)
}

// Observer receives engine outcomes, typically for metrics
type Observer interface {
	Registered(ok bool)
	Heartbeat(result string)
	Ended(reason string, n int)
	Enriched(result string)
	ActiveVisitors(n int)
}

type nopObserver struct{}

func (nopObserver) Registered(bool)    {}
func (nopObserver) Heartbeat(string)   {}
func (nopObserver) Ended(string, int)  {}
func (nopObserver) Enriched(string)    {}
func (nopObserver) ActiveVisitors(int) {}

// EnrichmentHook is called once an enrichment task has finished writing
type EnrichmentHook func(sessionID string, loc visitor.Location, err error)

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithStaleAfter sets the inactivity window after which a visitor is stale
func WithStaleAfter(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.staleAfter = d
		}
	}
}

// WithCleanupDelay sets how long after a registration the follow-up sweep runs
func WithCleanupDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.cleanupDelay = d
		}
	}
}

// WithWorkers sets the number of concurrent seal+delete tasks in a sweep
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithObserver attaches an outcome observer
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithEnrichmentHook attaches a completion hook to every enrichment task
func WithEnrichmentHook(h EnrichmentHook) Option {
	return func(e *Engine) { e.hook = h }
}
