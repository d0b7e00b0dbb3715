package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLiteStore(t *testing.T) *DBStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vitrin.db")
	s, err := NewDBStore(zap.NewNop(), SQLite, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDBStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return newSQLiteStore(t)
	})
}

func TestDBStore_InvalidType(t *testing.T) {
	_, err := NewDBStore(zap.NewNop(), DatabaseType("oracle"), "")
	assert.ErrorIs(t, err, ErrInvalidDatabaseType)
}

func TestDBStore_TableNames(t *testing.T) {
	s := newSQLiteStore(t)
	assert.True(t, s.db.Migrator().HasTable("active_visitors"))
	assert.True(t, s.db.Migrator().HasTable("visitor_history"))
	assert.True(t, s.db.Migrator().HasIndex(&ActiveVisitor{}, "idx_active_last_activity"))
}

func TestDBStore_MillisecondPrecision(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	at := base.Add(123456789) // 123.456789ms
	require.NoError(t, s.Active().Put(ctx, newVisitor("v1", at, at)))

	got, err := s.Active().Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), got.LastActivity.UnixMilli())
}

func TestModelConversion(t *testing.T) {
	v := newVisitor("v1", base, base)
	v.Referrer = "https://www.google.com/"
	back := FromVisitor(v).ToVisitor()
	assert.Equal(t, v.Referrer, back.Referrer)
	assert.Equal(t, v.UserAgent, back.UserAgent)
	assert.True(t, v.EnteredAt.Equal(back.EnteredAt))

	r := visitor.NewHistoryRecord(v)
	rb := FromHistoryRecord(r).ToHistoryRecord()
	assert.Nil(t, rb.ExitedAt)
	r.Seal(base)
	rb = FromHistoryRecord(r).ToHistoryRecord()
	if assert.NotNil(t, rb.ExitedAt) {
		assert.True(t, base.Equal(*rb.ExitedAt))
	}

	empty := (&ActiveVisitor{SessionID: "z"}).ToVisitor()
	assert.True(t, empty.LastActivity.IsZero())
}
