package storage

import (
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/visitor"
)

// VisitorColumns are the columns shared by both tables.
// Timestamps are unix milliseconds so every dialect orders and compares them the same way.
type VisitorColumns struct {
	IP           string `gorm:"column:ip;type:varchar(64)"`
	Device       string `gorm:"column:device;type:varchar(32)"`
	Browser      string `gorm:"column:browser;type:varchar(32)"`
	OS           string `gorm:"column:os;type:varchar(32)"`
	UserAgent    string `gorm:"column:user_agent;type:text"`
	Language     string `gorm:"column:language;type:varchar(32)"`
	ScreenWidth  int    `gorm:"column:screen_width"`
	ScreenHeight int    `gorm:"column:screen_height"`
	City         string `gorm:"column:city;type:varchar(128)"`
	Country      string `gorm:"column:country;type:varchar(128)"`
	Region       string `gorm:"column:region;type:varchar(128)"`
	CurrentPage  string `gorm:"column:current_page;type:varchar(512)"`
	Referrer     string `gorm:"column:referrer;type:text"`
	IsActive     bool   `gorm:"column:is_active"`
}

// ActiveVisitor is the database model of the active collection
type ActiveVisitor struct {
	SessionID string `gorm:"column:session_id;type:varchar(128);primaryKey"`
	VisitorColumns `gorm:"embedded"`
	EnteredAt    int64 `gorm:"column:entered_at;not null"`
	LastActivity int64 `gorm:"column:last_activity;not null;index:idx_active_last_activity"`
}

func (ActiveVisitor) TableName() string { return cnst.CollectionActive }

// VisitorHistory is the database model of the history collection
type VisitorHistory struct {
	SessionID string `gorm:"column:session_id;type:varchar(128);primaryKey"`
	VisitorColumns `gorm:"embedded"`
	EnteredAt    int64  `gorm:"column:entered_at;not null;index:idx_history_entered_at"`
	LastActivity int64  `gorm:"column:last_activity;not null"`
	ExitedAt     *int64 `gorm:"column:exited_at"`
}

func (VisitorHistory) TableName() string { return cnst.CollectionHistory }

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func columnsFrom(v *visitor.Visitor) VisitorColumns {
	return VisitorColumns{
		IP:           v.IP,
		Device:       v.Device,
		Browser:      v.Browser,
		OS:           v.OS,
		UserAgent:    v.UserAgent,
		Language:     v.Language,
		ScreenWidth:  v.ScreenWidth,
		ScreenHeight: v.ScreenHeight,
		City:         v.City,
		Country:      v.Country,
		Region:       v.Region,
		CurrentPage:  v.CurrentPage,
		Referrer:     v.Referrer,
		IsActive:     v.IsActive,
	}
}

func (c VisitorColumns) toVisitor(sessionID string, enteredAt, lastActivity int64) visitor.Visitor {
	return visitor.Visitor{
		SessionID:    sessionID,
		IP:           c.IP,
		Device:       c.Device,
		Browser:      c.Browser,
		OS:           c.OS,
		UserAgent:    c.UserAgent,
		Language:     c.Language,
		ScreenWidth:  c.ScreenWidth,
		ScreenHeight: c.ScreenHeight,
		City:         c.City,
		Country:      c.Country,
		Region:       c.Region,
		CurrentPage:  c.CurrentPage,
		Referrer:     c.Referrer,
		EnteredAt:    fromMillis(enteredAt),
		LastActivity: fromMillis(lastActivity),
		IsActive:     c.IsActive,
	}
}

// FromVisitor converts a domain visitor to its database model
func FromVisitor(v *visitor.Visitor) *ActiveVisitor {
	return &ActiveVisitor{
		SessionID:      v.SessionID,
		VisitorColumns: columnsFrom(v),
		EnteredAt:      toMillis(v.EnteredAt),
		LastActivity:   toMillis(v.LastActivity),
	}
}

// ToVisitor converts the database model back to the domain type
func (m *ActiveVisitor) ToVisitor() *visitor.Visitor {
	v := m.VisitorColumns.toVisitor(m.SessionID, m.EnteredAt, m.LastActivity)
	return &v
}

// FromHistoryRecord converts a domain history record to its database model
func FromHistoryRecord(r *visitor.HistoryRecord) *VisitorHistory {
	m := &VisitorHistory{
		SessionID:      r.SessionID,
		VisitorColumns: columnsFrom(&r.Visitor),
		EnteredAt:      toMillis(r.EnteredAt),
		LastActivity:   toMillis(r.LastActivity),
	}
	if r.ExitedAt != nil {
		ms := r.ExitedAt.UnixMilli()
		m.ExitedAt = &ms
	}
	return m
}

// ToHistoryRecord converts the database model back to the domain type
func (m *VisitorHistory) ToHistoryRecord() *visitor.HistoryRecord {
	r := &visitor.HistoryRecord{Visitor: m.VisitorColumns.toVisitor(m.SessionID, m.EnteredAt, m.LastActivity)}
	if m.ExitedAt != nil {
		t := time.UnixMilli(*m.ExitedAt)
		r.ExitedAt = &t
	}
	return r
}
