// Package visitor holds the presence data model shared by storage, the engine
// and the HTTP surface.
package visitor

import "time"

// Visitor is a live session in the active collection, keyed by SessionID.
type Visitor struct {
	SessionID    string    `json:"sessionId"`
	IP           string    `json:"ip"`
	Device       string    `json:"device"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	UserAgent    string    `json:"userAgent"`
	Language     string    `json:"language"`
	ScreenWidth  int       `json:"screenWidth"`
	ScreenHeight int       `json:"screenHeight"`
	City         string    `json:"city"`
	Country      string    `json:"country"`
	Region       string    `json:"region"`
	CurrentPage  string    `json:"currentPage"`
	Referrer     string    `json:"referrer"`
	EnteredAt    time.Time `json:"enteredAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsActive     bool      `json:"isActive"`
}

// Clone returns an independent copy
func (v *Visitor) Clone() *Visitor {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// IsStale reports whether the visitor has been silent for longer than window at now.
// A visitor without any recorded activity is always stale.
func (v *Visitor) IsStale(now time.Time, window time.Duration) bool {
	return IsStale(now, v.LastActivity, window)
}

// IsStale is the single staleness predicate; staleness is never stored.
func IsStale(now, lastActivity time.Time, window time.Duration) bool {
	return lastActivity.IsZero() || now.Sub(lastActivity) > window
}

// HistoryRecord is the append-only shadow of a Visitor. ExitedAt is nil while
// the session is live and is set exactly once when it ends.
type HistoryRecord struct {
	Visitor
	ExitedAt *time.Time `json:"exitedAt"`
}

// NewHistoryRecord snapshots v as an open history record
func NewHistoryRecord(v *Visitor) *HistoryRecord {
	return &HistoryRecord{Visitor: *v}
}

// Clone returns an independent copy
func (r *HistoryRecord) Clone() *HistoryRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.ExitedAt != nil {
		t := *r.ExitedAt
		cp.ExitedAt = &t
	}
	return &cp
}

// Seal closes the record at t unless it was already closed
func (r *HistoryRecord) Seal(t time.Time) {
	if r.ExitedAt == nil {
		r.ExitedAt = &t
	}
	r.IsActive = false
}

// Duration is the time spent on the site, measured up to now for open records
func (r *HistoryRecord) Duration(now time.Time) time.Duration {
	end := now
	if r.ExitedAt != nil {
		end = *r.ExitedAt
	}
	if end.Before(r.EnteredAt) {
		return 0
	}
	return end.Sub(r.EnteredAt)
}

// Location is the result of geolocation enrichment
type Location struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Country string `json:"country"`
	Region  string `json:"region"`
}

// Apply copies the enrichment result onto v
func (l Location) Apply(v *Visitor) {
	v.IP = l.IP
	v.City = l.City
	v.Country = l.Country
	v.Region = l.Region
}

// Environment is what the caller knows about the client at registration
type Environment struct {
	UserAgent    string
	Path         string
	Referrer     string
	ScreenWidth  int
	ScreenHeight int
	Language     string
	ClientIP     string
}
