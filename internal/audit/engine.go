package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openclerk/gridaudit/internal/coerce"
	"github.com/openclerk/gridaudit/internal/grid"
	"github.com/openclerk/gridaudit/internal/period"
	"github.com/openclerk/gridaudit/internal/progress"
	"github.com/openclerk/gridaudit/internal/revision"
	"github.com/openclerk/gridaudit/internal/runstate"
)

// Config holds all engine tuning. Everything is explicit here; the engine
// never consults the environment.
type Config struct {
	// Fields are the tracked columns, checked in order for every row.
	Fields []Field
	// BoundaryWeekday is the day a reporting week closes on.
	BoundaryWeekday time.Weekday
	// Location is the reference timezone for period comparisons. Nil = UTC.
	Location *time.Location

	// RowBatchSize partitions rows for pacing and observability only; there
	// is no per-batch transactionality.
	RowBatchSize int
	// LargeDatasetThreshold triggers an advisory warning. Processing never
	// truncates regardless of row count.
	LargeDatasetThreshold int
	// FlushBatchSize is the sink writer's batch size.
	FlushBatchSize int
	// RowDelay is slept between rows within a batch, BatchDelay between
	// batches.
	RowDelay   time.Duration
	BatchDelay time.Duration
}

// Engine drives one audit pass: dedup, batch, per-field reconciliation,
// classification, sink writes, watermark commit. Processing is strictly
// sequential; the pacing delays double as the rate-limit budget.
type Engine struct {
	client     grid.Client
	sink       Sink
	state      *runstate.Store
	classifier *period.Classifier
	reporter   progress.Reporter
	logger     *zap.Logger
	cfg        Config

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs an Engine. A nil sink puts the engine in disabled mode:
// Run returns immediately with Summary.Disabled set. reporter may be nil.
func New(client grid.Client, sink Sink, state *runstate.Store, cfg Config, logger *zap.Logger, reporter progress.Reporter) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RowBatchSize < 1 {
		cfg.RowBatchSize = 150
	}
	if cfg.FlushBatchSize < 1 {
		cfg.FlushBatchSize = 300
	}
	if cfg.LargeDatasetThreshold < 1 {
		cfg.LargeDatasetThreshold = 2000
	}
	return &Engine{
		client:     client,
		sink:       sink,
		state:      state,
		classifier: period.NewClassifier(cfg.BoundaryWeekday, cfg.Location),
		reporter:   reporter,
		logger:     logger,
		cfg:        cfg,
		sleep: func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return nil
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// Run executes one audit pass over the given rows. runStartedAt is the
// timestamp captured before the rows were fetched; it becomes the new
// watermark once every batch has been attempted. The caller fetches and
// flattens rows before invoking Run.
//
// Per-item failures are logged and skipped. Only a sink that fails its
// startup schema check aborts the run before any work.
func (e *Engine) Run(ctx context.Context, rows []grid.SourceRow, runStartedAt time.Time) (Summary, error) {
	start := time.Now()

	if e.sink == nil {
		e.logger.Info("audit disabled: no sink configured")
		return Summary{Disabled: true}, nil
	}
	if err := e.sink.Ready(ctx); err != nil {
		return Summary{}, fmt.Errorf("audit sink not ready: %w", err)
	}

	watermark := e.loadWatermark()
	runID := uuid.New().String()

	deduped, duplicates := dedupe(rows)
	e.warnIfLarge(len(deduped))

	writer := NewWriter(e.sink, e.cfg.FlushBatchSize, e.logger)
	summary := Summary{RowsDeduplicated: duplicates}

	if e.reporter != nil {
		e.reporter.Start(len(deduped))
	}

	batches := partition(deduped, e.cfg.RowBatchSize)
	for batchIndex, batch := range batches {
		if batchIndex > 0 {
			if err := e.sleep(ctx, e.cfg.BatchDelay); err != nil {
				return summary, err
			}
		}
		for rowIndex, row := range batch {
			if rowIndex > 0 {
				if err := e.sleep(ctx, e.cfg.RowDelay); err != nil {
					return summary, err
				}
			}
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			e.checkRow(ctx, row, watermark, runID, runStartedAt, writer, &summary)
			summary.RowsProcessed++
			if e.reporter != nil {
				e.reporter.Update(summary.RowsProcessed, fmt.Sprintf("%s row %d", row.SheetName, row.RowID))
			}
		}
	}

	writer.Flush(ctx)
	if e.reporter != nil {
		e.reporter.Finish()
	}

	summary.EntriesWritten = writer.Written()
	summary.BatchesAttempted = writer.Attempted()
	summary.FailedBatches = writer.Failed()
	summary.Elapsed = time.Since(start)

	// The watermark advances to the run's start time, not now: a change
	// landing between fetch and completion stays inside the next window.
	// Failed sink batches do not block the advance; they are surfaced via
	// logs and the summary so a broken sink cannot build an unbounded
	// backlog.
	if e.state != nil {
		if err := e.state.Save(runStartedAt); err != nil {
			return summary, fmt.Errorf("committing watermark: %w", err)
		}
	}

	e.logger.Info("audit run complete",
		zap.String("run_id", runID),
		zap.Int("rows_processed", summary.RowsProcessed),
		zap.Int("duplicates_collapsed", summary.RowsDeduplicated),
		zap.Int("entries_written", summary.EntriesWritten),
		zap.Int("batches_attempted", summary.BatchesAttempted),
		zap.Int("batches_failed", summary.FailedBatches),
		zap.Int("field_errors", summary.FieldErrors),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

func (e *Engine) loadWatermark() *time.Time {
	if e.state == nil {
		return nil
	}
	watermark, err := e.state.Load()
	if err != nil {
		e.logger.Warn("watermark unreadable, falling back to first-run baseline", zap.Error(err))
		return nil
	}
	if watermark == nil {
		e.logger.Info("no watermark found, first-run baseline mode")
	}
	return watermark
}

// checkRow runs every tracked field for one row. An unavailable upstream
// skips just that field; any other error abandons the row's remaining
// fields but never the run.
func (e *Engine) checkRow(ctx context.Context, row grid.SourceRow, watermark *time.Time, runID string, runStartedAt time.Time, writer *Writer, summary *Summary) {
	for _, field := range e.cfg.Fields {
		entry, err := e.checkField(ctx, row, field, watermark, runID, runStartedAt)
		if err != nil {
			summary.FieldErrors++
			if errors.Is(err, grid.ErrUnavailable) {
				e.logger.Warn("field history unavailable, skipping field",
					zap.Int64("sheet", row.SheetID),
					zap.Int64("row", row.RowID),
					zap.String("field", field.Column),
					zap.Error(err))
				continue
			}
			e.logger.Warn("field check failed, abandoning remaining fields for row",
				zap.Int64("sheet", row.SheetID),
				zap.Int64("row", row.RowID),
				zap.String("field", field.Column),
				zap.Error(err))
			return
		}
		if entry != nil {
			writer.Add(ctx, *entry)
		}
	}
}

// checkField returns a non-nil entry only for an unauthorized change.
// (nil, nil) means nothing to report for this field.
func (e *Engine) checkField(ctx context.Context, row grid.SourceRow, field Field, watermark *time.Time, runID string, runStartedAt time.Time) (*Entry, error) {
	columnID, ok := row.Columns[field.Column]
	if !ok {
		return nil, nil
	}

	history, err := e.client.CellHistory(ctx, row.SheetID, row.RowID, columnID)
	if err != nil {
		return nil, err
	}
	if skipped := revision.SkippedTimestamps(history); skipped > 0 {
		e.logger.Warn("revisions with unusable timestamps excluded from comparison",
			zap.Int64("row", row.RowID),
			zap.String("field", field.Column),
			zap.Int("skipped", skipped))
	}

	pair, ok := revision.Reconcile(history, watermark)
	if !ok {
		return nil, nil
	}
	if pair.After.ModifiedAt == nil {
		// Baseline mode can select an untimestamped revision; without a
		// change time there is nothing to classify.
		return nil, nil
	}

	kind := coerce.Kind(field.Kind)
	oldValue := coerce.Number(pair.Before.Value, kind)
	newValue := coerce.Number(pair.After.Value, kind)

	oldRaw := rawString(pair.Before)
	newRaw := rawString(pair.After)
	switch {
	case oldValue != nil && newValue != nil && *oldValue == *newValue:
		// "10" vs "10.0": no meaningful change.
		return nil, nil
	case oldValue == nil && newValue == nil && oldRaw == newRaw:
		return nil, nil
	}

	if row.ReferenceDate == nil {
		e.logger.Warn("row has no usable reference date, cannot classify",
			zap.Int64("sheet", row.SheetID),
			zap.Int64("row", row.RowID))
		return nil, nil
	}
	periodEnd := e.classifier.End(*row.ReferenceDate)
	if !e.classifier.IsUnauthorized(periodEnd, *pair.After.ModifiedAt) {
		return nil, nil
	}

	var delta *float64
	if oldValue != nil && newValue != nil {
		d := *newValue - *oldValue
		delta = &d
	}

	return &Entry{
		ID:        uuid.New().String(),
		RunID:     runID,
		SheetID:   row.SheetID,
		SheetName: row.SheetName,
		RowID:     row.RowID,
		RowRef:    row.Permalink,
		Field:     field.Column,
		OldRaw:    oldRaw,
		NewRaw:    newRaw,
		OldValue:  oldValue,
		NewValue:  newValue,
		Delta:     delta,
		Actor:     pair.After.Actor(),
		ChangedAt: *pair.After.ModifiedAt,
		PeriodEnd: periodEnd,
		AuditedAt: runStartedAt,
	}, nil
}

func rawString(rev grid.CellRevision) string {
	if rev.DisplayValue != "" {
		return rev.DisplayValue
	}
	if rev.Value == nil {
		return ""
	}
	return fmt.Sprint(rev.Value)
}

// dedupe collapses duplicate (sheet, row) identities, keeping the first
// occurrence. Upstream report groupings can reference one physical row from
// several groupings.
func dedupe(rows []grid.SourceRow) (deduped []grid.SourceRow, duplicates int) {
	type rowKey struct {
		sheetID int64
		rowID   int64
	}
	seen := make(map[rowKey]bool, len(rows))
	deduped = make([]grid.SourceRow, 0, len(rows))
	for _, row := range rows {
		key := rowKey{row.SheetID, row.RowID}
		if seen[key] {
			duplicates++
			continue
		}
		seen[key] = true
		deduped = append(deduped, row)
	}
	return deduped, duplicates
}

func partition(rows []grid.SourceRow, size int) [][]grid.SourceRow {
	var batches [][]grid.SourceRow
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}

// warnIfLarge logs an advisory estimate for big datasets. All rows are
// always processed; there is no row-count ceiling.
func (e *Engine) warnIfLarge(rowCount int) {
	if rowCount <= e.cfg.LargeDatasetThreshold {
		return
	}
	perRow := e.cfg.RowDelay + time.Duration(len(e.cfg.Fields))*300*time.Millisecond
	estimate := time.Duration(rowCount)*perRow + time.Duration(rowCount/e.cfg.RowBatchSize)*e.cfg.BatchDelay
	e.logger.Warn("large dataset, this run will take a while",
		zap.Int("rows", rowCount),
		zap.Int("threshold", e.cfg.LargeDatasetThreshold),
		zap.Duration("estimated_duration", estimate.Round(time.Minute)))
}
