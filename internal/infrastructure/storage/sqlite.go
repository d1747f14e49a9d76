package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
)

// SQLiteRegistry records the stable id-to-file mapping, retirement
// bookkeeping and local run history. The CSV files remain the source of
// truth for the series themselves; the registry exists so renames and
// symbol collisions never remap an id to a different file.
type SQLiteRegistry struct {
	db *sql.DB
}

func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	reg := &SQLiteRegistry{db: db}
	if err := reg.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return reg, nil
}

func (r *SQLiteRegistry) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			canonical_id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			file_name TEXT NOT NULL,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			last_rank INTEGER NOT NULL DEFAULT 0,
			retired_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assets_symbol ON assets(symbol);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			status TEXT NOT NULL,
			created INTEGER NOT NULL,
			refreshed INTEGER NOT NULL,
			unchanged INTEGER NOT NULL,
			retired INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			failed INTEGER NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := r.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// UpsertAsset registers or refreshes an asset's bookkeeping row. The
// file name, symbol and name are frozen on first insert; re-entering the
// ranking clears a previous retirement.
func (r *SQLiteRegistry) UpsertAsset(ctx context.Context, asset domain.Asset, fileName string, seenAt time.Time) error {
	query := `INSERT INTO assets (canonical_id, symbol, name, file_name, first_seen, last_seen, last_rank, retired_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
			  ON CONFLICT(canonical_id) DO UPDATE SET
				  last_seen = excluded.last_seen,
				  last_rank = excluded.last_rank,
				  retired_at = NULL`
	_, err := r.db.ExecContext(ctx, query,
		asset.CanonicalID, asset.Symbol, asset.Name, fileName, seenAt, seenAt, asset.Rank)
	return err
}

// MarkRetired stamps retired_at for an asset that left the ranking. The
// first retirement timestamp is kept across repeated retire actions.
func (r *SQLiteRegistry) MarkRetired(ctx context.Context, canonicalID string, at time.Time) error {
	query := `UPDATE assets SET retired_at = COALESCE(retired_at, ?) WHERE canonical_id = ?`
	_, err := r.db.ExecContext(ctx, query, at, canonicalID)
	return err
}

// RecordRun appends one row of local run history.
func (r *SQLiteRegistry) RecordRun(ctx context.Context, rec *domain.RunRecord) error {
	query := `INSERT INTO runs (started_at, finished_at, status, created, refreshed, unchanged, retired, skipped, failed)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		rec.StartedAt, rec.FinishedAt, string(rec.Status),
		rec.Created, rec.Refreshed, rec.Unchanged, rec.Retired, rec.Skipped, rec.Failed)
	return err
}

// RegisteredAsset is one bookkeeping row.
type RegisteredAsset struct {
	Asset     domain.Asset
	FileName  string
	FirstSeen time.Time
	LastSeen  time.Time
	RetiredAt *time.Time
}

// ListAssets returns every registered asset, retired ones included.
func (r *SQLiteRegistry) ListAssets(ctx context.Context) ([]*RegisteredAsset, error) {
	query := `SELECT canonical_id, symbol, name, file_name, first_seen, last_seen, last_rank, retired_at
			  FROM assets ORDER BY canonical_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*RegisteredAsset
	for rows.Next() {
		var a RegisteredAsset
		var retiredAt sql.NullTime
		if err := rows.Scan(&a.Asset.CanonicalID, &a.Asset.Symbol, &a.Asset.Name, &a.FileName,
			&a.FirstSeen, &a.LastSeen, &a.Asset.Rank, &retiredAt); err != nil {
			return nil, err
		}
		if retiredAt.Valid {
			t := retiredAt.Time
			a.RetiredAt = &t
		}
		assets = append(assets, &a)
	}
	return assets, rows.Err()
}

// LastRun returns the most recent run record, or nil when no run has
// been recorded yet.
func (r *SQLiteRegistry) LastRun(ctx context.Context) (*domain.RunRecord, error) {
	query := `SELECT started_at, finished_at, status, created, refreshed, unchanged, retired, skipped, failed
			  FROM runs ORDER BY id DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query)

	var rec domain.RunRecord
	var status string
	err := row.Scan(&rec.StartedAt, &rec.FinishedAt, &status,
		&rec.Created, &rec.Refreshed, &rec.Unchanged, &rec.Retired, &rec.Skipped, &rec.Failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Status = domain.RunStatus(status)
	return &rec, nil
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
