package visitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	window := 2 * time.Minute

	assert.False(t, IsStale(now, now, window))
	assert.False(t, IsStale(now, now.Add(-window), window), "exactly at the boundary is still live")
	assert.True(t, IsStale(now, now.Add(-window-time.Millisecond), window))
	assert.True(t, IsStale(now, time.Time{}, window))

	v := &Visitor{LastActivity: now.Add(-3 * time.Minute)}
	assert.True(t, v.IsStale(now, window))
}

func TestHistoryRecordSeal(t *testing.T) {
	entered := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	r := NewHistoryRecord(&Visitor{SessionID: "s1", EnteredAt: entered, IsActive: true})
	require.Nil(t, r.ExitedAt)
	assert.Equal(t, 5*time.Minute, r.Duration(entered.Add(5*time.Minute)))

	first := entered.Add(time.Minute)
	r.Seal(first)
	require.NotNil(t, r.ExitedAt)
	assert.False(t, r.IsActive)

	r.Seal(entered.Add(10 * time.Minute))
	assert.True(t, first.Equal(*r.ExitedAt), "a sealed record keeps its first exit time")
	assert.Equal(t, time.Minute, r.Duration(entered.Add(time.Hour)))
}

func TestClonesAreIndependent(t *testing.T) {
	exit := time.Now()
	r := &HistoryRecord{Visitor: Visitor{SessionID: "s1", City: "İzmir"}, ExitedAt: &exit}
	cp := r.Clone()
	cp.City = "Ankara"
	*cp.ExitedAt = exit.Add(time.Hour)
	assert.Equal(t, "İzmir", r.City)
	assert.True(t, exit.Equal(*r.ExitedAt))

	v := &Visitor{SessionID: "s2"}
	vc := v.Clone()
	vc.CurrentPage = "/lastik"
	assert.Empty(t, v.CurrentPage)

	var nilVisitor *Visitor
	assert.Nil(t, nilVisitor.Clone())
}

func TestLocationApply(t *testing.T) {
	v := &Visitor{}
	Location{IP: "85.105.1.1", City: "İstanbul", Country: "Turkey", Region: "Istanbul"}.Apply(v)
	assert.Equal(t, "85.105.1.1", v.IP)
	assert.Equal(t, "İstanbul", v.City)
	assert.Equal(t, "Turkey", v.Country)
	assert.Equal(t, "Istanbul", v.Region)
}
