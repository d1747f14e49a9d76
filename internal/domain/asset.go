package domain

import (
	"fmt"
	"strings"
	"time"
)

// Asset identifies one tracked cryptocurrency. CanonicalID is the stable
// identifier assigned by the ranking source and is the join key across
// runs; Symbol and Name are display-only and never change once the asset
// file exists.
type Asset struct {
	CanonicalID string `json:"canonical_id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Rank        int    `json:"rank"`
}

// FileName returns the per-asset output file name, e.g. "bitcoin_BTC.csv".
func (a Asset) FileName() string {
	return fmt.Sprintf("%s_%s.csv", a.CanonicalID, strings.ToUpper(a.Symbol))
}

// TrackedAsset is an asset with an existing on-disk series.
type TrackedAsset struct {
	Asset
	FileName string
	// LastDate is the newest stored bar date (UTC day); nil if the file
	// exists but holds no rows.
	LastDate *time.Time
}
