package usecase

import (
	"sort"
	"time"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
)

// PlannedAction is one entry of the reconciliation plan.
type PlannedAction struct {
	Asset    domain.Asset
	Action   domain.Action
	FileName string
	// Since is the exclusive lower bound for a refresh fetch (the last
	// stored bar date); nil requests maximum available history.
	Since *time.Time
}

// BuildPlan diffs the current ranking against the tracked on-disk state
// and decides per-asset actions. Identity is resolved strictly by
// canonical id; a symbol shared by two different ids never merges two
// series. Pure function: no I/O, no clock reads (today is an input).
func BuildPlan(ranking []domain.Asset, tracked map[string]domain.TrackedAsset, today time.Time) map[string]PlannedAction {
	today = domain.Day(today)
	plan := make(map[string]PlannedAction, len(ranking)+len(tracked))

	ranked := make(map[string]bool, len(ranking))
	for _, asset := range ranking {
		ranked[asset.CanonicalID] = true

		prev, exists := tracked[asset.CanonicalID]
		if !exists {
			plan[asset.CanonicalID] = PlannedAction{
				Asset:    asset,
				Action:   domain.ActionCreate,
				FileName: asset.FileName(),
			}
			continue
		}

		// Symbol and name are frozen at file creation; only the rank
		// moves with the latest snapshot.
		cur := prev.Asset
		cur.Rank = asset.Rank

		if prev.LastDate != nil && !domain.Day(*prev.LastDate).Before(today) {
			// Already fetched through today's UTC day; re-running within
			// the same day must not touch the file or the source.
			plan[asset.CanonicalID] = PlannedAction{
				Asset:    cur,
				Action:   domain.ActionUnchanged,
				FileName: prev.FileName,
			}
			continue
		}

		pa := PlannedAction{
			Asset:    cur,
			Action:   domain.ActionRefresh,
			FileName: prev.FileName,
		}
		if prev.LastDate != nil {
			since := domain.Day(*prev.LastDate)
			pa.Since = &since
		}
		plan[asset.CanonicalID] = pa
	}

	for id, prev := range tracked {
		if ranked[id] {
			continue
		}
		// Dropped out of the ranking: no fetch, the file stays on disk.
		plan[id] = PlannedAction{
			Asset:    prev.Asset,
			Action:   domain.ActionRetire,
			FileName: prev.FileName,
		}
	}

	return plan
}

// PlanOrder returns the plan's canonical ids sorted by rank (retired
// assets, which carry no current rank, come last in id order). Execution
// order does not affect results; this only makes logs stable.
func PlanOrder(plan map[string]PlannedAction) []string {
	ids := make([]string, 0, len(plan))
	for id := range plan {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := plan[ids[i]], plan[ids[j]]
		ar, br := a.Asset.Rank, b.Asset.Rank
		if a.Action == domain.ActionRetire {
			ar = 0
		}
		if b.Action == domain.ActionRetire {
			br = 0
		}
		if ar != br {
			if ar == 0 {
				return false
			}
			if br == 0 {
				return true
			}
			return ar < br
		}
		return ids[i] < ids[j]
	})
	return ids
}
