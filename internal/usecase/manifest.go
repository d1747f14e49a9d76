package usecase

import (
	"sort"
	"sync"
	"time"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
)

// ManifestBuilder aggregates per-asset outcomes into the run manifest.
// Outcomes arrive from concurrent workers in arbitrary order; aggregation
// is a set union keyed by canonical id, so completion order is
// irrelevant. The run timestamp and schema version are injected by the
// caller to keep runs reproducible.
type ManifestBuilder struct {
	schemaVersion string
	generatedAt   time.Time
	dataset       domain.DatasetInfo

	mu       sync.Mutex
	outcomes map[string]domain.AssetOutcome
}

func NewManifestBuilder(schemaVersion string, generatedAt time.Time, dataset domain.DatasetInfo) *ManifestBuilder {
	return &ManifestBuilder{
		schemaVersion: schemaVersion,
		generatedAt:   generatedAt,
		dataset:       dataset,
		outcomes:      make(map[string]domain.AssetOutcome),
	}
}

// Record stores one asset's outcome. Safe for concurrent use; a second
// record for the same canonical id replaces the first.
func (b *ManifestBuilder) Record(o domain.AssetOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outcomes[o.CanonicalID] = o
}

// Build assembles the manifest with entries sorted by canonical id so
// identical outcomes always serialize identically.
func (b *ManifestBuilder) Build() *domain.DatasetManifest {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := &domain.DatasetManifest{
		SchemaVersion: b.schemaVersion,
		GeneratedAt:   b.generatedAt,
		Dataset:       b.dataset,
		Retired:       []string{},
		Assets:        make([]domain.AssetOutcome, 0, len(b.outcomes)),
	}

	ids := make([]string, 0, len(b.outcomes))
	for id := range b.outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		o := b.outcomes[id]
		m.Assets = append(m.Assets, o)

		switch o.Status {
		case domain.StatusOK:
			m.TotalAssets++
			m.Succeeded++
		case domain.StatusSkipped:
			m.TotalAssets++
			m.Skipped++
		case domain.StatusFailed:
			m.TotalAssets++
			m.Failed++
		case domain.StatusRetired:
			m.Retired = append(m.Retired, id)
		}
	}
	return m
}
