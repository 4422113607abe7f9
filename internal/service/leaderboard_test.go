package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/button-game/internal/service/memstore"
)

func seedBoard(t *testing.T, counts map[string]int64) (*memstore.DB, map[string]uint64) {
	t.Helper()
	db := memstore.New()
	ids := map[string]uint64{}
	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		c, ok := counts[name]
		if !ok {
			continue
		}
		u, err := db.Users.Create(context.Background(), name, name+"@example.com", "x")
		require.NoError(t, err)
		db.Clicks.Set(u.ID, c)
		ids[name] = u.ID
	}
	return db, ids
}

func TestRankIsDenseOnTies(t *testing.T) {
	db, ids := seedBoard(t, map[string]int64{"alice": 10, "bob": 10, "carol": 3})
	svc := NewLeaderboardService(db.Clicks)
	ctx := context.Background()

	a, err := svc.Rank(ctx, ids["alice"])
	require.NoError(t, err)
	b, err := svc.Rank(ctx, ids["bob"])
	require.NoError(t, err)
	c, err := svc.Rank(ctx, ids["carol"])
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Rank)
	assert.Equal(t, int64(1), b.Rank)
	assert.Equal(t, int64(3), c.Rank)
}

func TestTopPlayersOrderAndTieBreak(t *testing.T) {
	db, ids := seedBoard(t, map[string]int64{"alice": 4, "bob": 9, "carol": 9, "dave": 0})
	svc := NewLeaderboardService(db.Clicks)

	top, err := svc.TopPlayers(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, top, 4)
	assert.Equal(t, ids["bob"], top[0].UserID)
	assert.Equal(t, ids["carol"], top[1].UserID)
	assert.Equal(t, ids["alice"], top[2].UserID)
	assert.Equal(t, 1, top[0].Position)
	assert.Equal(t, 4, top[3].Position)

	top, err = svc.TopPlayers(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestBoardTotalsAndViewer(t *testing.T) {
	db, ids := seedBoard(t, map[string]int64{"alice": 4, "bob": 9, "dave": 0})
	svc := NewLeaderboardService(db.Clicks)

	anon, err := svc.Board(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, anon.Viewer)
	assert.Equal(t, int64(2), anon.Totals.Players)
	assert.Equal(t, int64(13), anon.Totals.TotalClicks)

	mine, err := svc.Board(context.Background(), ids["dave"])
	require.NoError(t, err)
	require.NotNil(t, mine.Viewer)
	assert.Equal(t, int64(3), mine.Viewer.Rank)
	assert.Equal(t, int64(0), mine.Viewer.Counter.ClickCount)
}

func TestTotalsEmpty(t *testing.T) {
	svc := NewLeaderboardService(memstore.New().Clicks)
	tot, err := svc.Totals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, tot.Players)
	assert.Zero(t, tot.TotalClicks)
}
