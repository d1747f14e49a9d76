package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
	"go.uber.org/zap"
)

// PipelineConfig carries the run-level knobs. Everything here is passed
// in explicitly so runs are reproducible and testable in isolation.
type PipelineConfig struct {
	TopN          int
	Concurrency   int
	SchemaVersion string
	Dataset       domain.DatasetInfo
}

// Pipeline sequences one full dataset refresh: ranking fetch, membership
// reconciliation, per-asset fetch/derive/write, manifest build and the
// publish handoff. Per-asset failures degrade that asset to "skipped" or
// "failed" without aborting the rest; only an unreachable ranking source
// kills the run.
type Pipeline struct {
	ranking   domain.RankingSource
	prices    domain.PriceSource
	store     domain.SeriesStore
	registry  domain.AssetRegistry
	publisher domain.Publisher
	cfg       PipelineConfig
	log       *zap.Logger
	timeNow   func() time.Time // For testing
}

// NewPipeline wires the collaborators. publisher may be nil when
// publication is disabled; registry may be nil in tests.
func NewPipeline(ranking domain.RankingSource, prices domain.PriceSource, store domain.SeriesStore,
	registry domain.AssetRegistry, publisher domain.Publisher, cfg PipelineConfig, log *zap.Logger) *Pipeline {

	if cfg.TopN <= 0 {
		cfg.TopN = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = domain.SchemaVersion
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Pipeline{
		ranking:   ranking,
		prices:    prices,
		store:     store,
		registry:  registry,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		timeNow:   time.Now,
	}
}

// RunResult is the aggregate of one invocation. PublishErr is set when
// local artifacts were finalized but the handoff to the sink failed.
type RunResult struct {
	Status     domain.RunStatus
	Manifest   *domain.DatasetManifest
	PublishErr error
}

// Run executes the pipeline once. A returned error means a hard failure
// before or outside per-asset work; per-asset problems are contained in
// the manifest instead.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	started := p.timeNow().UTC()

	ranking, err := p.ranking.TopAssets(ctx, p.cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("ranking fetch failed: %w", err)
	}
	p.log.Info("Fetched ranking", zap.Int("assets", len(ranking)))

	tracked, err := p.store.Tracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading tracked assets: %w", err)
	}

	plan := BuildPlan(ranking, tracked, started)
	p.log.Info("Reconciled membership",
		zap.Int("ranked", len(ranking)),
		zap.Int("tracked", len(tracked)),
		zap.Int("planned", len(plan)))

	builder := NewManifestBuilder(p.cfg.SchemaVersion, started, p.cfg.Dataset)

	// Per-asset work is independent; a bounded pool keeps the fetch
	// clients inside their rate budget. One asset's backoff sleeps never
	// block another's progress.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, id := range PlanOrder(plan) {
		pa := plan[id]
		wg.Add(1)
		go func(pa PlannedAction) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			builder.Record(p.executeAction(ctx, pa))
		}(pa)
	}
	wg.Wait()

	manifest := builder.Build()

	if err := p.store.WriteDataDictionary(ctx); err != nil {
		return nil, fmt.Errorf("writing data dictionary: %w", err)
	}
	if err := p.store.WriteManifest(ctx, manifest); err != nil {
		return nil, fmt.Errorf("writing manifest: %w", err)
	}

	p.updateRegistry(ctx, plan, manifest, started)

	res := &RunResult{
		Status:   aggregateStatus(manifest),
		Manifest: manifest,
	}

	// Publish failures are reported, not fatal: the local dataset is
	// already finalized and stays valid.
	if p.publisher != nil && res.Status != domain.RunFailed {
		if err := p.publisher.Publish(ctx, p.store.Dir(), manifest); err != nil {
			p.log.Error("Publish failed", zap.Error(err))
			res.PublishErr = err
		}
	}

	p.recordRun(ctx, manifest, started, res.Status)

	p.log.Info("Run finished",
		zap.String("status", string(res.Status)),
		zap.Int("succeeded", manifest.Succeeded),
		zap.Int("skipped", manifest.Skipped),
		zap.Int("failed", manifest.Failed),
		zap.Int("retired", len(manifest.Retired)))

	return res, nil
}

func (p *Pipeline) executeAction(ctx context.Context, pa PlannedAction) domain.AssetOutcome {
	out := domain.AssetOutcome{
		CanonicalID: pa.Asset.CanonicalID,
		Symbol:      pa.Asset.Symbol,
		Name:        pa.Asset.Name,
		FileName:    pa.FileName,
		Action:      pa.Action,
		Rank:        pa.Asset.Rank,
	}

	switch pa.Action {
	case domain.ActionRetire:
		// The stored series is retained untouched; it is only marked
		// retired in the manifest.
		out.Status = domain.StatusRetired
		if bars, err := p.store.ReadBars(ctx, pa.FileName); err == nil {
			fillDates(&out, bars)
		}
		return out

	case domain.ActionUnchanged:
		out.Status = domain.StatusOK
		if bars, err := p.store.ReadBars(ctx, pa.FileName); err == nil {
			fillDates(&out, bars)
		}
		return out
	}

	fetched, err := p.prices.DailyHistory(ctx, pa.Asset, pa.Since)
	if err != nil {
		p.log.Warn("Price fetch failed, skipping asset",
			zap.String("asset", pa.Asset.CanonicalID), zap.Error(err))
		out.Status = domain.StatusSkipped
		out.Error = err.Error()
		return out
	}

	var prior []domain.PriceBar
	if pa.Action == domain.ActionRefresh {
		prior, err = p.store.ReadBars(ctx, pa.FileName)
		if err != nil {
			out.Status = domain.StatusFailed
			out.Error = err.Error()
			return out
		}
	}

	merged := MergeBars(prior, fetched)
	if len(merged) == 0 {
		// The source genuinely has no history for this asset.
		out.Status = domain.StatusSkipped
		out.Error = "no data available"
		return out
	}
	if len(merged) == len(prior) {
		// Refresh with no strictly-newer bars: leave the file untouched.
		out.Status = domain.StatusOK
		fillDates(&out, prior)
		return out
	}

	if err := ValidateBars(pa.Asset.CanonicalID, merged); err != nil {
		p.log.Warn("Rejected series update",
			zap.String("asset", pa.Asset.CanonicalID), zap.Error(err))
		out.Status = domain.StatusFailed
		out.Error = err.Error()
		return out
	}

	rows := Derive(merged)
	if err := p.store.WriteSeries(ctx, pa.FileName, rows); err != nil {
		out.Status = domain.StatusFailed
		out.Error = err.Error()
		return out
	}

	out.Status = domain.StatusOK
	fillDates(&out, merged)
	p.log.Debug("Updated series",
		zap.String("asset", pa.Asset.CanonicalID),
		zap.String("action", string(pa.Action)),
		zap.Int("rows", len(merged)))
	return out
}

func fillDates(out *domain.AssetOutcome, bars []domain.PriceBar) {
	out.RowCount = len(bars)
	if len(bars) > 0 {
		out.FirstDate = bars[0].Date.Format(domain.DateLayout)
		out.LastDate = bars[len(bars)-1].Date.Format(domain.DateLayout)
	}
}

func (p *Pipeline) updateRegistry(ctx context.Context, plan map[string]PlannedAction, m *domain.DatasetManifest, at time.Time) {
	if p.registry == nil {
		return
	}
	for _, o := range m.Assets {
		pa, ok := plan[o.CanonicalID]
		if !ok {
			continue
		}
		var err error
		switch {
		case o.Status == domain.StatusRetired:
			err = p.registry.MarkRetired(ctx, o.CanonicalID, at)
		case o.Status == domain.StatusOK:
			err = p.registry.UpsertAsset(ctx, pa.Asset, pa.FileName, at)
		}
		if err != nil {
			p.log.Warn("Registry update failed",
				zap.String("asset", o.CanonicalID), zap.Error(err))
		}
	}
}

func (p *Pipeline) recordRun(ctx context.Context, m *domain.DatasetManifest, started time.Time, status domain.RunStatus) {
	if p.registry == nil {
		return
	}
	rec := &domain.RunRecord{
		StartedAt:  started,
		FinishedAt: p.timeNow().UTC(),
		Status:     status,
		Retired:    len(m.Retired),
		Skipped:    m.Skipped,
		Failed:     m.Failed,
	}
	for _, o := range m.Assets {
		if o.Status != domain.StatusOK {
			continue
		}
		switch o.Action {
		case domain.ActionCreate:
			rec.Created++
		case domain.ActionRefresh:
			rec.Refreshed++
		case domain.ActionUnchanged:
			rec.Unchanged++
		}
	}
	if err := p.registry.RecordRun(ctx, rec); err != nil {
		p.log.Warn("Recording run failed", zap.Error(err))
	}
}

func aggregateStatus(m *domain.DatasetManifest) domain.RunStatus {
	switch {
	case m.Skipped == 0 && m.Failed == 0:
		return domain.RunSuccess
	case m.Succeeded > 0:
		return domain.RunPartialSuccess
	default:
		return domain.RunFailed
	}
}
