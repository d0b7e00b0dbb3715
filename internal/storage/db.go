package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// DatabaseType represents the supported database types
type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgres"
	MySQL      DatabaseType = "mysql"
	SQLite     DatabaseType = "sqlite"
)

// DBStore implements Store on a relational database through gorm
type DBStore struct {
	logger  *zap.Logger
	db      *gorm.DB
	active  *dbActive
	history *dbHistory
}

var _ Store = (*DBStore)(nil)

// NewDBStore opens the database and migrates both tables
func NewDBStore(logger *zap.Logger, dbType DatabaseType, dsn string) (*DBStore, error) {
	logger = logger.Named("storage.db")

	var dialector gorm.Dialector
	switch dbType {
	case PostgreSQL:
		dialector = postgres.Open(dsn)
	case MySQL:
		dialector = mysql.Open(dsn)
	case SQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, ErrInvalidDatabaseType
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ActiveVisitor{}, &VisitorHistory{}); err != nil {
		return nil, err
	}

	// SQLite has no row locks; a single connection serialises read-modify-write
	if dbType == SQLite {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	return &DBStore{
		logger:  logger,
		db:      db,
		active:  &dbActive{db: db, lock: dbType != SQLite},
		history: &dbHistory{db: db, lock: dbType != SQLite},
	}, nil
}

func (s *DBStore) Active() ActiveRepository   { return s.active }
func (s *DBStore) History() HistoryRepository { return s.history }

// Close closes the underlying connection pool
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func forUpdate(tx *gorm.DB, lock bool) *gorm.DB {
	if lock {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

type dbActive struct {
	db   *gorm.DB
	lock bool
}

func (d *dbActive) Put(ctx context.Context, v *visitor.Visitor) error {
	return d.db.WithContext(ctx).Save(FromVisitor(v)).Error
}

func (d *dbActive) Get(ctx context.Context, sessionID string) (*visitor.Visitor, error) {
	var m ActiveVisitor
	if err := d.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToVisitor(), nil
}

func (d *dbActive) Update(ctx context.Context, sessionID string, fn func(v *visitor.Visitor)) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ActiveVisitor
		if err := forUpdate(tx, d.lock).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
			return translate(err)
		}
		v := m.ToVisitor()
		fn(v)
		v.SessionID = sessionID
		return tx.Save(FromVisitor(v)).Error
	})
}

func (d *dbActive) Delete(ctx context.Context, sessionID string) error {
	return d.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&ActiveVisitor{}).Error
}

func (d *dbActive) DeleteIf(ctx context.Context, sessionID string, cond func(v *visitor.Visitor) bool) (*visitor.Visitor, error) {
	var removed *visitor.Visitor
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m ActiveVisitor
		if err := forUpdate(tx, d.lock).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
			return translate(err)
		}
		v := m.ToVisitor()
		if cond != nil && !cond(v) {
			return nil
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&ActiveVisitor{}).Error; err != nil {
			return err
		}
		removed = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (d *dbActive) List(ctx context.Context, q ActiveQuery) ([]*visitor.Visitor, error) {
	tx := d.db.WithContext(ctx).Order("last_activity DESC").Order("session_id ASC")
	if !q.InactiveBefore.IsZero() {
		tx = tx.Where("last_activity < ?", q.InactiveBefore.UnixMilli())
	}

	var models []ActiveVisitor
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*visitor.Visitor, len(models))
	for i := range models {
		out[i] = models[i].ToVisitor()
	}
	return out, nil
}

type dbHistory struct {
	db   *gorm.DB
	lock bool
}

func (d *dbHistory) Put(ctx context.Context, r *visitor.HistoryRecord) error {
	return d.db.WithContext(ctx).Save(FromHistoryRecord(r)).Error
}

func (d *dbHistory) Get(ctx context.Context, sessionID string) (*visitor.HistoryRecord, error) {
	var m VisitorHistory
	if err := d.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToHistoryRecord(), nil
}

func (d *dbHistory) Update(ctx context.Context, sessionID string, fn func(r *visitor.HistoryRecord)) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m VisitorHistory
		if err := forUpdate(tx, d.lock).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
			return translate(err)
		}
		r := m.ToHistoryRecord()
		fn(r)
		r.SessionID = sessionID
		return tx.Save(FromHistoryRecord(r)).Error
	})
}

func (d *dbHistory) ListSince(ctx context.Context, since time.Time) ([]*visitor.HistoryRecord, error) {
	var models []VisitorHistory
	err := d.db.WithContext(ctx).
		Where("entered_at >= ?", since.UnixMilli()).
		Order("entered_at DESC").Order("session_id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*visitor.HistoryRecord, len(models))
	for i := range models {
		out[i] = models[i].ToHistoryRecord()
	}
	return out, nil
}
