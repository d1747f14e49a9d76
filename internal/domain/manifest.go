package domain

import "time"

// SchemaVersion identifies the output column set and the missing-value
// convention (leading indicator rows are kept with empty markers, not
// omitted). Bump when either changes.
const SchemaVersion = "1.1.0"

// Action is the reconciler's decision for one asset.
type Action string

const (
	ActionCreate    Action = "create"
	ActionRefresh   Action = "refresh"
	ActionRetire    Action = "retire"
	ActionUnchanged Action = "unchanged_no_op"
)

// Status is the per-asset outcome of a run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusRetired Status = "retired"
	StatusFailed  Status = "failed"
)

// AssetOutcome records how one asset fared in a run.
type AssetOutcome struct {
	CanonicalID string `json:"canonical_id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	Action      Action `json:"action"`
	Status      Status `json:"status"`
	Rank        int    `json:"rank,omitempty"`
	RowCount    int    `json:"row_count"`
	FirstDate   string `json:"first_date,omitempty"`
	LastDate    string `json:"last_date,omitempty"`
	Error       string `json:"error,omitempty"`
}

// DatasetInfo is the publication metadata attached to every manifest
// (title, slug and license for the dataset hosting side).
type DatasetInfo struct {
	Title    string   `json:"title"`
	ID       string   `json:"id"`
	License  string   `json:"license,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// DatasetManifest describes one generated dataset version. It is created
// fresh each run and supersedes the previous manifest wholesale.
type DatasetManifest struct {
	SchemaVersion string         `json:"schema_version"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Dataset       DatasetInfo    `json:"dataset"`
	TotalAssets   int            `json:"total_assets"`
	Succeeded     int            `json:"succeeded"`
	Skipped       int            `json:"skipped"`
	Failed        int            `json:"failed"`
	Retired       []string       `json:"retired"`
	Assets        []AssetOutcome `json:"assets"`
}

// RunStatus is the aggregate result of one pipeline invocation.
type RunStatus string

const (
	RunSuccess        RunStatus = "success"
	RunPartialSuccess RunStatus = "partial_success"
	RunFailed         RunStatus = "failed"
)

// RunRecord is the registry's run-history row.
type RunRecord struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     RunStatus `json:"status"`
	Created    int       `json:"created"`
	Refreshed  int       `json:"refreshed"`
	Unchanged  int       `json:"unchanged"`
	Retired    int       `json:"retired"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}
