package grid

import (
	"context"
	"time"
)

// SheetInfo identifies one sheet in the grid workspace.
type SheetInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SourceRow is one logical unit of audit work: a row snapshot flattened from
// the grid API. The engine never mutates it.
type SourceRow struct {
	SheetID   int64
	SheetName string
	RowID     int64
	Permalink string
	// Cells maps column title to the raw cell value as decoded from JSON.
	Cells map[string]any
	// Columns maps column title to column ID, needed for history lookups.
	Columns map[string]int64
	// ReferenceDate is the denormalized date the row's reporting period is
	// derived from. Nil when the reference cell was absent or unparseable.
	ReferenceDate *time.Time
}

// CellRevision is one point-in-time observation of a single cell. The API
// returns revisions in no guaranteed order; callers must sort.
type CellRevision struct {
	Value        any
	DisplayValue string
	// ModifiedAt is nil when the upstream timestamp was absent or did not
	// parse. Such revisions sort earliest and are excluded from watermark
	// comparison.
	ModifiedAt      *time.Time
	ModifiedByName  string
	ModifiedByEmail string
}

// Actor returns the best identity for the revision's author, preferring
// email over display name.
func (r CellRevision) Actor() string {
	if r.ModifiedByEmail != "" {
		return r.ModifiedByEmail
	}
	return r.ModifiedByName
}

// NewRow is a row to append to a sheet, keyed by column ID.
type NewRow struct {
	Cells map[int64]any
}

// Client is the contract against the grid service. HTTPClient implements it
// against the real API; Resilient wraps any Client with retry and pacing.
type Client interface {
	ListSheets(ctx context.Context) ([]SheetInfo, error)
	ListRows(ctx context.Context, sheetID int64) ([]SourceRow, error)
	ColumnMap(ctx context.Context, sheetID int64) (map[string]int64, error)
	CellHistory(ctx context.Context, sheetID, rowID, columnID int64) ([]CellRevision, error)
	AppendRows(ctx context.Context, sheetID int64, rows []NewRow) error
}
