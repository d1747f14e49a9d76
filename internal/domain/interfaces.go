package domain

import (
	"context"
	"time"
)

// RankingSource returns the current top-N assets by market cap, ordered
// by rank. N is nominally 100 but not contractually fixed.
type RankingSource interface {
	TopAssets(ctx context.Context, n int) ([]Asset, error)
}

// PriceSource returns daily bars for an asset in the pipeline's quote
// currency. since is an exclusive lower bound on the bar date; nil means
// maximum available history. An empty result is valid (no new data) and
// distinct from an error.
type PriceSource interface {
	DailyHistory(ctx context.Context, asset Asset, since *time.Time) ([]PriceBar, error)
}

// SeriesStore owns the per-asset output files and the dataset-level
// documents that live next to them.
type SeriesStore interface {
	Tracked(ctx context.Context) (map[string]TrackedAsset, error)
	ReadBars(ctx context.Context, fileName string) ([]PriceBar, error)
	WriteSeries(ctx context.Context, fileName string, rows []DerivedRow) error
	WriteDataDictionary(ctx context.Context) error
	WriteManifest(ctx context.Context, m *DatasetManifest) error
	Dir() string
}

// AssetRegistry keeps the stable id-to-file mapping, retirement
// bookkeeping and local run history.
type AssetRegistry interface {
	UpsertAsset(ctx context.Context, asset Asset, fileName string, seenAt time.Time) error
	MarkRetired(ctx context.Context, canonicalID string, at time.Time) error
	RecordRun(ctx context.Context, rec *RunRecord) error
}

// Publisher pushes a finished dataset directory plus its manifest to the
// external versioned sink.
type Publisher interface {
	Publish(ctx context.Context, dir string, m *DatasetManifest) error
}
