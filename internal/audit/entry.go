// Package audit is the change-detection engine: it reconstructs what changed
// on each tracked field since the last run, classifies each change against
// the row's reporting period, and writes findings to the audit sink.
package audit

import "time"

// Field is one tracked column and its coercion rule.
type Field struct {
	// Column is the column title in the source sheets.
	Column string
	// Kind selects the coercion rule (currency or count).
	Kind string
}

// Entry is one detected unauthorized change. Created once, never mutated,
// handed to the sink writer in batches.
type Entry struct {
	ID    string
	RunID string

	SheetID   int64
	SheetName string
	RowID     int64
	RowRef    string

	Field  string
	OldRaw string
	NewRaw string
	// OldValue/NewValue/Delta are nil when a side did not coerce to a number.
	OldValue *float64
	NewValue *float64
	Delta    *float64

	Actor     string
	ChangedAt time.Time
	PeriodEnd time.Time
	AuditedAt time.Time
}

// Summary is the user-visible result of one audit run.
type Summary struct {
	Disabled         bool
	RowsProcessed    int
	RowsDeduplicated int
	EntriesWritten   int
	BatchesAttempted int
	FailedBatches    int
	FieldErrors      int
	Elapsed          time.Duration
}
