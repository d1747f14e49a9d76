package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/storage"
)

func newTestRegistry(t *testing.T) *storage.SQLiteRegistry {
	t.Helper()
	reg, err := storage.NewSQLiteRegistry(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestSQLiteRegistry_UpsertAndList(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	btc := domain.Asset{CanonicalID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Rank: 1}
	seen := day("2024-01-10")
	require.NoError(t, reg.UpsertAsset(ctx, btc, "bitcoin_BTC.csv", seen))

	// Later run, rank moved.
	btc.Rank = 2
	later := day("2024-01-11")
	require.NoError(t, reg.UpsertAsset(ctx, btc, "bitcoin_BTC.csv", later))

	assets, err := reg.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	a := assets[0]
	assert.Equal(t, "bitcoin", a.Asset.CanonicalID)
	assert.Equal(t, 2, a.Asset.Rank)
	assert.True(t, a.FirstSeen.Equal(seen), "first_seen is frozen on insert")
	assert.True(t, a.LastSeen.Equal(later))
	assert.Nil(t, a.RetiredAt)
}

func TestSQLiteRegistry_RetireKeepsFirstTimestamp(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doge := domain.Asset{CanonicalID: "dogecoin", Symbol: "DOGE", Rank: 90}
	require.NoError(t, reg.UpsertAsset(ctx, doge, "dogecoin_DOGE.csv", day("2024-01-01")))

	first := day("2024-01-10")
	require.NoError(t, reg.MarkRetired(ctx, "dogecoin", first))
	require.NoError(t, reg.MarkRetired(ctx, "dogecoin", day("2024-01-17")))

	assets, err := reg.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.NotNil(t, assets[0].RetiredAt)
	assert.True(t, assets[0].RetiredAt.Equal(first), "repeated retires keep the original timestamp")
}

func TestSQLiteRegistry_ReenteringRankingClearsRetirement(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	doge := domain.Asset{CanonicalID: "dogecoin", Symbol: "DOGE", Rank: 95}
	require.NoError(t, reg.UpsertAsset(ctx, doge, "dogecoin_DOGE.csv", day("2024-01-01")))
	require.NoError(t, reg.MarkRetired(ctx, "dogecoin", day("2024-01-10")))

	require.NoError(t, reg.UpsertAsset(ctx, doge, "dogecoin_DOGE.csv", day("2024-02-01")))

	assets, err := reg.ListAssets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Nil(t, assets[0].RetiredAt)
}

func TestSQLiteRegistry_RunHistory(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	last, err := reg.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last, "no history yet")

	older := &domain.RunRecord{
		StartedAt:  day("2024-01-09"),
		FinishedAt: day("2024-01-09").Add(10 * time.Minute),
		Status:     domain.RunSuccess,
		Created:    100,
	}
	newer := &domain.RunRecord{
		StartedAt:  day("2024-01-10"),
		FinishedAt: day("2024-01-10").Add(8 * time.Minute),
		Status:     domain.RunPartialSuccess,
		Refreshed:  97,
		Skipped:    2,
		Failed:     1,
	}
	require.NoError(t, reg.RecordRun(ctx, older))
	require.NoError(t, reg.RecordRun(ctx, newer))

	last, err = reg.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, domain.RunPartialSuccess, last.Status)
	assert.Equal(t, 97, last.Refreshed)
	assert.Equal(t, 2, last.Skipped)
	assert.Equal(t, 1, last.Failed)
	assert.True(t, last.StartedAt.Equal(newer.StartedAt))
}
