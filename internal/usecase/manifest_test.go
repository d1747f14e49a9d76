package usecase_test

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/usecase"
)

func TestManifestBuilder_AggregatesAndSorts(t *testing.T) {
	b := usecase.NewManifestBuilder("1.1.0", day("2024-01-10"), domain.DatasetInfo{Title: "Crypto"})

	b.Record(domain.AssetOutcome{CanonicalID: "ethereum", Status: domain.StatusOK, Action: domain.ActionRefresh})
	b.Record(domain.AssetOutcome{CanonicalID: "bitcoin", Status: domain.StatusOK, Action: domain.ActionCreate})
	b.Record(domain.AssetOutcome{CanonicalID: "solana", Status: domain.StatusSkipped, Action: domain.ActionCreate})
	b.Record(domain.AssetOutcome{CanonicalID: "dogecoin", Status: domain.StatusRetired, Action: domain.ActionRetire})
	b.Record(domain.AssetOutcome{CanonicalID: "cardano", Status: domain.StatusFailed, Action: domain.ActionRefresh})

	m := b.Build()

	assert.Equal(t, "1.1.0", m.SchemaVersion)
	assert.Equal(t, day("2024-01-10"), m.GeneratedAt)
	assert.Equal(t, "Crypto", m.Dataset.Title)

	assert.Equal(t, 4, m.TotalAssets, "retired assets are listed separately, not counted as active")
	assert.Equal(t, 2, m.Succeeded)
	assert.Equal(t, 1, m.Skipped)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, []string{"dogecoin"}, m.Retired)

	ids := make([]string, len(m.Assets))
	for i, o := range m.Assets {
		ids[i] = o.CanonicalID
	}
	assert.Equal(t, []string{"bitcoin", "cardano", "dogecoin", "ethereum", "solana"}, ids)
}

func TestManifestBuilder_OrderIndependent(t *testing.T) {
	outcomes := []domain.AssetOutcome{
		{CanonicalID: "bitcoin", Status: domain.StatusOK, Action: domain.ActionCreate, RowCount: 10},
		{CanonicalID: "ethereum", Status: domain.StatusSkipped, Action: domain.ActionCreate},
		{CanonicalID: "dogecoin", Status: domain.StatusRetired, Action: domain.ActionRetire},
	}

	forward := usecase.NewManifestBuilder("1.1.0", day("2024-01-10"), domain.DatasetInfo{})
	for _, o := range outcomes {
		forward.Record(o)
	}
	backward := usecase.NewManifestBuilder("1.1.0", day("2024-01-10"), domain.DatasetInfo{})
	for i := len(outcomes) - 1; i >= 0; i-- {
		backward.Record(outcomes[i])
	}

	assert.True(t, reflect.DeepEqual(forward.Build(), backward.Build()),
		"aggregation is a set union; completion order must not matter")
}

func TestManifestBuilder_ConcurrentRecords(t *testing.T) {
	b := usecase.NewManifestBuilder("1.1.0", day("2024-01-10"), domain.DatasetInfo{})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Record(domain.AssetOutcome{
				CanonicalID: fmt.Sprintf("asset-%03d", i),
				Status:      domain.StatusOK,
				Action:      domain.ActionCreate,
			})
		}(i)
	}
	wg.Wait()

	m := b.Build()
	require.Len(t, m.Assets, 100)
	assert.Equal(t, 100, m.Succeeded)
	assert.Equal(t, "asset-000", m.Assets[0].CanonicalID)
	assert.Equal(t, "asset-099", m.Assets[99].CanonicalID)
}

func TestManifestBuilder_EmptyRun(t *testing.T) {
	m := usecase.NewManifestBuilder("1.1.0", day("2024-01-10"), domain.DatasetInfo{}).Build()

	assert.Equal(t, 0, m.TotalAssets)
	assert.NotNil(t, m.Retired, "retired must serialize as [], not null")
	assert.Empty(t, m.Assets)
}
