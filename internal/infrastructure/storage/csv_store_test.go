package storage_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/infrastructure/storage"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(domain.DateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func fptr(v float64) *float64 { return &v }

func sampleRows() []domain.DerivedRow {
	return []domain.DerivedRow{
		{
			PriceBar:      domain.PriceBar{Date: day("2024-01-01"), Open: 100, High: 105, Low: 95, Close: 102, Volume: 1e6},
			HighLowSpread: 10,
		},
		{
			PriceBar:      domain.PriceBar{Date: day("2024-01-02"), Open: 102, High: 110.5, Low: 101.25, Close: 108, Volume: 1.5e6},
			DailyReturn:   fptr(0.058823529411764705),
			HighLowSpread: 9.25,
			SMA7:          fptr(105),
			SMA30:         fptr(103.5),
		},
	}
}

func TestCSVStore_WriteThenReadBars(t *testing.T) {
	store, err := storage.NewCSVStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	rows := sampleRows()
	require.NoError(t, store.WriteSeries(ctx, "bitcoin_BTC.csv", rows))

	bars, err := store.ReadBars(ctx, "bitcoin_BTC.csv")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, rows[0].PriceBar, bars[0])
	assert.Equal(t, rows[1].PriceBar, bars[1])
}

func TestCSVStore_MissingValuesSerializeAsEmptyFields(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewCSVStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.WriteSeries(context.Background(), "bitcoin_BTC.csv", sampleRows()))

	data, err := os.ReadFile(filepath.Join(dir, "bitcoin_BTC.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "Date,Open,High,Low,Close,Volume,Daily_Return,High_Low_Spread,SMA_7,SMA_30", lines[0])
	// First day: no prior close, no SMA windows. Empty fields, never 0.
	assert.Equal(t, "2024-01-01,100,105,95,102,1000000,,10,,", lines[1])
	assert.Equal(t, "2024-01-02,102,110.5,101.25,108,1500000,0.058823529411764705,9.25,105,103.5", lines[2])
}

func TestCSVStore_RewriteIsByteIdentical(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewCSVStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.WriteSeries(ctx, "bitcoin_BTC.csv", sampleRows()))
	first, err := os.ReadFile(filepath.Join(dir, "bitcoin_BTC.csv"))
	require.NoError(t, err)

	require.NoError(t, store.WriteSeries(ctx, "bitcoin_BTC.csv", sampleRows()))
	second, err := os.ReadFile(filepath.Join(dir, "bitcoin_BTC.csv"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCSVStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewCSVStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.WriteSeries(context.Background(), "bitcoin_BTC.csv", sampleRows()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestCSVStore_TrackedParsesFileNames(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewCSVStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.WriteSeries(ctx, "bitcoin_BTC.csv", sampleRows()))
	// Hyphenated canonical id: the last underscore splits id from symbol.
	require.NoError(t, store.WriteSeries(ctx, "terra-luna-2_LUNA.csv", sampleRows()))
	require.NoError(t, store.WriteDataDictionary(ctx))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	tracked, err := store.Tracked(ctx)
	require.NoError(t, err)
	require.Len(t, tracked, 2, "dictionary and non-csv files are not series")

	btc := tracked["bitcoin"]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, "bitcoin_BTC.csv", btc.FileName)
	require.NotNil(t, btc.LastDate)
	assert.Equal(t, day("2024-01-02"), *btc.LastDate)

	luna := tracked["terra-luna-2"]
	assert.Equal(t, "LUNA", luna.Symbol)
	assert.Equal(t, "terra-luna-2_LUNA.csv", luna.FileName)
}

func TestCSVStore_TrackedHandlesHeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewCSVStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.WriteSeries(context.Background(), "newcoin_NEW.csv", nil))

	tracked, err := store.Tracked(context.Background())
	require.NoError(t, err)
	require.Contains(t, tracked, "newcoin")
	assert.Nil(t, tracked["newcoin"].LastDate, "a rowless file has no last date")
}

func TestCSVStore_ReadBarsMissingFile(t *testing.T) {
	store, err := storage.NewCSVStore(t.TempDir())
	require.NoError(t, err)

	bars, err := store.ReadBars(context.Background(), "ghost_GST.csv")
	require.NoError(t, err)
	assert.Nil(t, bars)
}

func TestCSVStore_WriteManifest(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewCSVStore(dir)
	require.NoError(t, err)

	m := &domain.DatasetManifest{
		SchemaVersion: "1.1.0",
		GeneratedAt:   day("2024-01-10"),
		Dataset:       domain.DatasetInfo{Title: "Top 100 Crypto Daily"},
		TotalAssets:   1,
		Succeeded:     1,
		Retired:       []string{},
		Assets: []domain.AssetOutcome{
			{CanonicalID: "bitcoin", Symbol: "BTC", Action: domain.ActionCreate, Status: domain.StatusOK, RowCount: 2},
		},
	}
	require.NoError(t, store.WriteManifest(context.Background(), m))

	data, err := os.ReadFile(filepath.Join(dir, "dataset-metadata.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))

	var got domain.DatasetManifest
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "1.1.0", got.SchemaVersion)
	assert.Equal(t, "Top 100 Crypto Daily", got.Dataset.Title)
	require.Len(t, got.Assets, 1)
	assert.Equal(t, "bitcoin", got.Assets[0].CanonicalID)
	assert.NotNil(t, got.Retired)
}

func TestCSVStore_WriteDataDictionary(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewCSVStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.WriteDataDictionary(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "data_dictionary.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 11, "header plus one row per series column")
	assert.Equal(t, "Column Name,Description,Data Type", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Date,"))
	assert.True(t, strings.HasPrefix(lines[10], "SMA_30,"))
}
