package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"github.com/HrushiSanap/crypto-top100-automation/internal/usecase"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(domain.DateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	d := day(s)
	return &d
}

func trackedAsset(id, symbol, lastDate string) domain.TrackedAsset {
	ta := domain.TrackedAsset{
		Asset:    domain.Asset{CanonicalID: id, Symbol: symbol},
		FileName: id + "_" + symbol + ".csv",
	}
	if lastDate != "" {
		ta.LastDate = dayPtr(lastDate)
	}
	return ta
}

func TestBuildPlan_CreateForUnseenAsset(t *testing.T) {
	ranking := []domain.Asset{{CanonicalID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Rank: 1}}

	plan := usecase.BuildPlan(ranking, nil, day("2024-01-10"))

	require.Len(t, plan, 1)
	pa := plan["bitcoin"]
	assert.Equal(t, domain.ActionCreate, pa.Action)
	assert.Equal(t, "bitcoin_BTC.csv", pa.FileName)
	assert.Nil(t, pa.Since, "full history fetch must not carry a lower bound")
}

func TestBuildPlan_RefreshUsesLastStoredDate(t *testing.T) {
	ranking := []domain.Asset{{CanonicalID: "bitcoin", Symbol: "BTC", Rank: 2}}
	tracked := map[string]domain.TrackedAsset{
		"bitcoin": trackedAsset("bitcoin", "BTC", "2024-01-08"),
	}

	plan := usecase.BuildPlan(ranking, tracked, day("2024-01-10"))

	pa := plan["bitcoin"]
	assert.Equal(t, domain.ActionRefresh, pa.Action)
	require.NotNil(t, pa.Since)
	assert.Equal(t, day("2024-01-08"), *pa.Since, "since is the exclusive lower bound")
	assert.Equal(t, 2, pa.Asset.Rank, "rank follows the latest snapshot")
}

func TestBuildPlan_SameDayRerunIsNoOp(t *testing.T) {
	ranking := []domain.Asset{{CanonicalID: "bitcoin", Symbol: "BTC", Rank: 1}}
	tracked := map[string]domain.TrackedAsset{
		"bitcoin": trackedAsset("bitcoin", "BTC", "2024-01-10"),
	}

	plan := usecase.BuildPlan(ranking, tracked, day("2024-01-10").Add(15*time.Hour))

	assert.Equal(t, domain.ActionUnchanged, plan["bitcoin"].Action)
}

func TestBuildPlan_RetireDroppedAsset(t *testing.T) {
	ranking := []domain.Asset{{CanonicalID: "bitcoin", Symbol: "BTC", Rank: 1}}
	tracked := map[string]domain.TrackedAsset{
		"bitcoin":  trackedAsset("bitcoin", "BTC", "2024-01-09"),
		"dogecoin": trackedAsset("dogecoin", "DOGE", "2024-01-09"),
	}

	plan := usecase.BuildPlan(ranking, tracked, day("2024-01-10"))

	require.Len(t, plan, 2)
	pa := plan["dogecoin"]
	assert.Equal(t, domain.ActionRetire, pa.Action)
	assert.Nil(t, pa.Since)
	assert.Equal(t, "dogecoin_DOGE.csv", pa.FileName, "retired file stays mapped to its id")
}

func TestBuildPlan_SymbolCollisionNeverMergesSeries(t *testing.T) {
	// A relisted asset reuses the LUNA symbol under a new canonical id.
	ranking := []domain.Asset{{CanonicalID: "terra-luna-2", Symbol: "LUNA", Rank: 40}}
	tracked := map[string]domain.TrackedAsset{
		"terra-luna": trackedAsset("terra-luna", "LUNA", "2024-01-05"),
	}

	plan := usecase.BuildPlan(ranking, tracked, day("2024-01-10"))

	require.Len(t, plan, 2)
	assert.Equal(t, domain.ActionCreate, plan["terra-luna-2"].Action)
	assert.Equal(t, domain.ActionRetire, plan["terra-luna"].Action)
	assert.NotEqual(t, plan["terra-luna-2"].FileName, plan["terra-luna"].FileName)
}

func TestBuildPlan_EmptyFileIsRefreshedFromScratch(t *testing.T) {
	ranking := []domain.Asset{{CanonicalID: "bitcoin", Symbol: "BTC", Rank: 1}}
	tracked := map[string]domain.TrackedAsset{
		"bitcoin": trackedAsset("bitcoin", "BTC", ""),
	}

	plan := usecase.BuildPlan(ranking, tracked, day("2024-01-10"))

	pa := plan["bitcoin"]
	assert.Equal(t, domain.ActionRefresh, pa.Action)
	assert.Nil(t, pa.Since, "a rowless file needs maximum history")
}

func TestPlanOrder_RankedFirstThenRetired(t *testing.T) {
	ranking := []domain.Asset{
		{CanonicalID: "ethereum", Symbol: "ETH", Rank: 2},
		{CanonicalID: "bitcoin", Symbol: "BTC", Rank: 1},
	}
	tracked := map[string]domain.TrackedAsset{
		"dogecoin": trackedAsset("dogecoin", "DOGE", "2024-01-09"),
	}

	plan := usecase.BuildPlan(ranking, tracked, day("2024-01-10"))
	order := usecase.PlanOrder(plan)

	assert.Equal(t, []string{"bitcoin", "ethereum", "dogecoin"}, order)
}
