package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vitrinhq/vitrin/internal/common/cnst"
	"github.com/vitrinhq/vitrin/internal/visitor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)

func newVisitor(id string, entered, last time.Time) *visitor.Visitor {
	return &visitor.Visitor{
		SessionID:    id,
		IP:           cnst.Loading,
		Device:       cnst.DeviceMobile,
		Browser:      "Chrome",
		OS:           "Android",
		UserAgent:    "Mozilla/5.0 (Linux; Android 13) Chrome/120.0 Mobile",
		Language:     "tr-TR",
		ScreenWidth:  390,
		ScreenHeight: 844,
		City:         cnst.Loading,
		Country:      cnst.Loading,
		Region:       cnst.Loading,
		CurrentPage:  "/",
		Referrer:     cnst.Direct,
		EnteredAt:    entered,
		LastActivity: last,
		IsActive:     true,
	}
}

func activeIDs(vs []*visitor.Visitor) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.SessionID
	}
	return out
}

func historyIDs(rs []*visitor.HistoryRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.SessionID
	}
	return out
}

// runStoreContract exercises the behaviour every backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("active put get delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.Active()

		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		v := newVisitor("v1", base, base)
		require.NoError(t, repo.Put(ctx, v))

		got, err := repo.Get(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, "v1", got.SessionID)
		assert.Equal(t, "Chrome", got.Browser)
		assert.Equal(t, 390, got.ScreenWidth)
		assert.Equal(t, cnst.Loading, got.City)
		assert.True(t, got.IsActive)
		assert.True(t, base.Equal(got.EnteredAt))
		assert.True(t, base.Equal(got.LastActivity))

		// a returned document is a copy
		got.City = "Ankara"
		again, err := repo.Get(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, cnst.Loading, again.City)

		require.NoError(t, repo.Delete(ctx, "v1"))
		_, err = repo.Get(ctx, "v1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, repo.Delete(ctx, "v1"), "deleting twice is not an error")
	})

	t.Run("active put replaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.Active()

		require.NoError(t, repo.Put(ctx, newVisitor("v1", base, base)))
		replacement := newVisitor("v1", base.Add(time.Minute), base.Add(time.Minute))
		replacement.CurrentPage = "/kampanya"
		require.NoError(t, repo.Put(ctx, replacement))

		all, err := repo.List(ctx, ActiveQuery{})
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "/kampanya", all[0].CurrentPage)
	})

	t.Run("active update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.Active()

		err := repo.Update(ctx, "missing", func(v *visitor.Visitor) { v.CurrentPage = "/x" })
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound, "update never creates")

		require.NoError(t, repo.Put(ctx, newVisitor("v1", base, base)))
		later := base.Add(30 * time.Second)
		require.NoError(t, repo.Update(ctx, "v1", func(v *visitor.Visitor) {
			v.CurrentPage = "/lastik/michelin"
			v.LastActivity = later
			v.SessionID = "ignored"
		}))

		got, err := repo.Get(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, "/lastik/michelin", got.CurrentPage)
		assert.True(t, later.Equal(got.LastActivity))
		assert.True(t, base.Equal(got.EnteredAt))

		stale, err := repo.List(ctx, ActiveQuery{InactiveBefore: later})
		require.NoError(t, err)
		assert.Empty(t, stale, "the index follows the new last activity")
	})

	t.Run("active conditional delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.Active()
		cutoff := base.Add(time.Minute)
		stale := func(v *visitor.Visitor) bool { return ActiveQuery{InactiveBefore: cutoff}.Matches(v) }

		_, err := repo.DeleteIf(ctx, "missing", stale)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, repo.Put(ctx, newVisitor("v1", base, base)))
		// refreshed after it was selected
		require.NoError(t, repo.Update(ctx, "v1", func(v *visitor.Visitor) { v.LastActivity = cutoff }))
		removed, err := repo.DeleteIf(ctx, "v1", stale)
		require.NoError(t, err)
		assert.Nil(t, removed)
		_, err = repo.Get(ctx, "v1")
		require.NoError(t, err, "a refreshed document survives")
		all, err := repo.List(ctx, ActiveQuery{})
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, activeIDs(all))

		require.NoError(t, repo.Put(ctx, newVisitor("v2", base, base)))
		removed, err = repo.DeleteIf(ctx, "v2", stale)
		require.NoError(t, err)
		require.NotNil(t, removed)
		assert.Equal(t, "v2", removed.SessionID)
		assert.Equal(t, "Chrome", removed.Browser)
		_, err = repo.Get(ctx, "v2")
		assert.ErrorIs(t, err, ErrNotFound)

		removed, err = repo.DeleteIf(ctx, "v1", nil)
		require.NoError(t, err)
		require.NotNil(t, removed)
		all, err = repo.List(ctx, ActiveQuery{})
		require.NoError(t, err)
		assert.Empty(t, all, "the index entry goes with the document")
	})

	t.Run("active list ordering and stale filter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.Active()

		require.NoError(t, repo.Put(ctx, newVisitor("old", base, base)))
		require.NoError(t, repo.Put(ctx, newVisitor("mid", base, base.Add(time.Minute))))
		require.NoError(t, repo.Put(ctx, newVisitor("new", base, base.Add(2*time.Minute))))

		all, err := repo.List(ctx, ActiveQuery{})
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "mid", "old"}, activeIDs(all))

		stale, err := repo.List(ctx, ActiveQuery{InactiveBefore: base.Add(time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, []string{"old"}, activeIDs(stale), "the threshold itself is not stale")
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.Active()
		require.NoError(t, repo.Put(ctx, newVisitor("v1", base, base)))

		const n = 10
		var wg sync.WaitGroup
		for i := 1; i <= n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				at := base.Add(time.Duration(i) * time.Second)
				assert.NoError(t, repo.Update(ctx, "v1", func(v *visitor.Visitor) {
					v.ScreenWidth++
					if at.After(v.LastActivity) {
						v.LastActivity = at
					}
				}))
			}(i)
		}
		wg.Wait()

		got, err := repo.Get(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, 390+n, got.ScreenWidth)
		assert.True(t, base.Add(n*time.Second).Equal(got.LastActivity))
	})

	t.Run("history put update list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		repo := s.History()

		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, repo.Update(ctx, "missing", func(r *visitor.HistoryRecord) {}), ErrNotFound)

		for i := 0; i < 3; i++ {
			entered := base.Add(time.Duration(i) * time.Hour)
			require.NoError(t, repo.Put(ctx, visitor.NewHistoryRecord(newVisitor(fmt.Sprintf("h%d", i), entered, entered))))
		}

		got, err := repo.Get(ctx, "h1")
		require.NoError(t, err)
		assert.Nil(t, got.ExitedAt)
		assert.True(t, got.IsActive)

		exit := base.Add(90 * time.Minute)
		require.NoError(t, repo.Update(ctx, "h1", func(r *visitor.HistoryRecord) {
			r.Seal(exit)
			r.City = "İzmir"
		}))
		got, err = repo.Get(ctx, "h1")
		require.NoError(t, err)
		require.NotNil(t, got.ExitedAt)
		assert.True(t, exit.Equal(*got.ExitedAt))
		assert.False(t, got.IsActive)
		assert.Equal(t, "İzmir", got.City)

		all, err := repo.ListSince(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, []string{"h2", "h1", "h0"}, historyIDs(all))

		recent, err := repo.ListSince(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []string{"h2", "h1"}, historyIDs(recent), "entered exactly at the bound is included")

		none, err := repo.ListSince(ctx, base.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
