package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openclerk/gridaudit/internal/grid"
)

// Sink receives batches of audit entries. Append is at-least-once: a caller
// may deliver the same entry again after a crash, and consumers de-duplicate
// by (row, field, change timestamp).
type Sink interface {
	// Ready verifies the sink is usable. Called once before any processing;
	// an error here is fatal for the whole run.
	Ready(ctx context.Context) error
	Append(ctx context.Context, entries []Entry) error
}

// Sheet column titles the sink sheet must provide. Ready resolves them
// against the live column map, so a misconfigured sink fails before any row
// work starts.
const (
	colSheet     = "Sheet"
	colRowID     = "Row ID"
	colRowRef    = "Row Link"
	colField     = "Field"
	colOldValue  = "Old Value"
	colNewValue  = "New Value"
	colDelta     = "Delta"
	colActor     = "Changed By"
	colChangedAt = "Changed At"
	colPeriodEnd = "Period End"
	colRunID     = "Run ID"
	colAuditedAt = "Audited At"
)

var sinkColumns = []string{
	colSheet, colRowID, colRowRef, colField, colOldValue, colNewValue,
	colDelta, colActor, colChangedAt, colPeriodEnd, colRunID, colAuditedAt,
}

// SheetSink appends entries as rows to an audit sheet in the grid service.
type SheetSink struct {
	client  grid.Client
	sheetID int64
	columns map[string]int64
}

// NewSheetSink creates a sink writing to the given audit sheet.
func NewSheetSink(client grid.Client, sheetID int64) *SheetSink {
	return &SheetSink{client: client, sheetID: sheetID}
}

// Ready fetches the audit sheet's column map and verifies every required
// column exists.
func (s *SheetSink) Ready(ctx context.Context) error {
	columns, err := s.client.ColumnMap(ctx, s.sheetID)
	if err != nil {
		return fmt.Errorf("audit sheet %d schema: %w", s.sheetID, err)
	}

	var missing []string
	for _, title := range sinkColumns {
		if _, ok := columns[title]; !ok {
			missing = append(missing, title)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("audit sheet %d missing columns: %s", s.sheetID, strings.Join(missing, ", "))
	}

	s.columns = columns
	return nil
}

// Append converts entries to sheet rows and appends them.
func (s *SheetSink) Append(ctx context.Context, entries []Entry) error {
	if s.columns == nil {
		return fmt.Errorf("sheet sink used before Ready")
	}

	rows := make([]grid.NewRow, 0, len(entries))
	for _, entry := range entries {
		cells := map[int64]any{
			s.columns[colSheet]:     entry.SheetName,
			s.columns[colRowID]:     entry.RowID,
			s.columns[colRowRef]:    entry.RowRef,
			s.columns[colField]:     entry.Field,
			s.columns[colOldValue]:  entry.OldRaw,
			s.columns[colNewValue]:  entry.NewRaw,
			s.columns[colActor]:     entry.Actor,
			s.columns[colChangedAt]: entry.ChangedAt.UTC().Format(time.RFC3339),
			s.columns[colPeriodEnd]: entry.PeriodEnd.UTC().Format("2006-01-02"),
			s.columns[colRunID]:     entry.RunID,
			s.columns[colAuditedAt]: entry.AuditedAt.UTC().Format(time.RFC3339),
		}
		if entry.Delta != nil {
			cells[s.columns[colDelta]] = *entry.Delta
		} else {
			cells[s.columns[colDelta]] = ""
		}
		rows = append(rows, grid.NewRow{Cells: cells})
	}
	return s.client.AppendRows(ctx, s.sheetID, rows)
}

// MultiSink fans entries out to several sinks. Ready requires every sink;
// Append delivers to each and reports the first error after trying all, so a
// broken mirror cannot starve the primary sheet sink.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewMultiSink combines sinks. A nil logger defaults to no-op.
func NewMultiSink(logger *zap.Logger, sinks ...Sink) *MultiSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiSink{sinks: sinks, logger: logger}
}

func (m *MultiSink) Ready(ctx context.Context) error {
	for _, sink := range m.sinks {
		if err := sink.Ready(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) Append(ctx context.Context, entries []Entry) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Append(ctx, entries); err != nil {
			m.logger.Warn("sink append failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
