package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/openclerk/gridaudit/internal/grid"
)

// sinkGrid fakes just the two client calls SheetSink needs.
type sinkGrid struct {
	columns   map[string]int64
	columnErr error
	appended  []grid.NewRow
}

func (s *sinkGrid) ListSheets(ctx context.Context) ([]grid.SheetInfo, error) { return nil, nil }
func (s *sinkGrid) ListRows(ctx context.Context, sheetID int64) ([]grid.SourceRow, error) {
	return nil, nil
}
func (s *sinkGrid) CellHistory(ctx context.Context, sheetID, rowID, columnID int64) ([]grid.CellRevision, error) {
	return nil, nil
}

func (s *sinkGrid) ColumnMap(ctx context.Context, sheetID int64) (map[string]int64, error) {
	return s.columns, s.columnErr
}

func (s *sinkGrid) AppendRows(ctx context.Context, sheetID int64, rows []grid.NewRow) error {
	s.appended = append(s.appended, rows...)
	return nil
}

func fullSinkColumns() map[string]int64 {
	columns := make(map[string]int64, len(sinkColumns))
	for i, title := range sinkColumns {
		columns[title] = int64(500 + i)
	}
	return columns
}

func TestSheetSinkReadyChecksSchema(t *testing.T) {
	client := &sinkGrid{columns: fullSinkColumns()}
	sink := NewSheetSink(client, 9)
	if err := sink.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
}

func TestSheetSinkReadyReportsMissingColumns(t *testing.T) {
	columns := fullSinkColumns()
	delete(columns, colDelta)
	delete(columns, colRunID)

	sink := NewSheetSink(&sinkGrid{columns: columns}, 9)
	err := sink.Ready(context.Background())
	if err == nil {
		t.Fatal("expected missing-column error")
	}
	if !strings.Contains(err.Error(), colDelta) || !strings.Contains(err.Error(), colRunID) {
		t.Errorf("error %q should name the missing columns", err)
	}
}

func TestSheetSinkReadyPropagatesSchemaFetchFailure(t *testing.T) {
	sink := NewSheetSink(&sinkGrid{columnErr: errors.New("status 403")}, 9)
	if err := sink.Ready(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSheetSinkAppendMapsEntryToCells(t *testing.T) {
	client := &sinkGrid{columns: fullSinkColumns()}
	sink := NewSheetSink(client, 9)
	if err := sink.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	delta := 5.0
	entry := Entry{
		SheetName: "WO Report",
		RowID:     10,
		Field:     "Quantity",
		OldRaw:    "10",
		NewRaw:    "15",
		Delta:     &delta,
		Actor:     "editor@example.com",
		ChangedAt: time.Date(2024, 7, 9, 10, 0, 0, 0, time.UTC),
		PeriodEnd: time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC),
		RunID:     "run-1",
		AuditedAt: time.Date(2024, 7, 10, 6, 0, 0, 0, time.UTC),
	}
	if err := sink.Append(context.Background(), []Entry{entry}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if len(client.appended) != 1 {
		t.Fatalf("appended %d rows, want 1", len(client.appended))
	}
	cells := client.appended[0].Cells
	columns := fullSinkColumns()
	if cells[columns[colField]] != "Quantity" {
		t.Errorf("field cell = %v", cells[columns[colField]])
	}
	if cells[columns[colDelta]] != 5.0 {
		t.Errorf("delta cell = %v, want 5", cells[columns[colDelta]])
	}
	if cells[columns[colPeriodEnd]] != "2024-07-07" {
		t.Errorf("period end cell = %v", cells[columns[colPeriodEnd]])
	}
}

func TestSheetSinkAppendBeforeReadyFails(t *testing.T) {
	sink := NewSheetSink(&sinkGrid{}, 9)
	if err := sink.Append(context.Background(), []Entry{{}}); err == nil {
		t.Fatal("expected error when Append precedes Ready")
	}
}

func TestMultiSinkDeliversToAllDespiteFailure(t *testing.T) {
	broken := &memorySink{appendErrs: []error{errors.New("mirror down")}}
	healthy := &memorySink{}
	multi := NewMultiSink(zap.NewNop(), broken, healthy)

	if err := multi.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	err := multi.Append(context.Background(), []Entry{{ID: "e1"}})
	if err == nil {
		t.Error("expected the mirror failure to surface")
	}
	if len(healthy.entries) != 1 {
		t.Errorf("healthy sink got %d entries, want 1", len(healthy.entries))
	}
}
