package mirror

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openclerk/gridaudit/internal/audit"
)

// Store is the SQLite-backed mirror. It implements audit.Sink.
type Store struct {
	db *sql.DB
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ready verifies the mirror schema is reachable.
func (s *Store) Ready(ctx context.Context) error {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='audit_entries'`).Scan(&name)
	if err != nil {
		return fmt.Errorf("mirror schema check: %w", err)
	}
	return nil
}

// Append inserts a batch of entries. Entries without an ID get a UUID.
func (s *Store) Append(ctx context.Context, entries []audit.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning mirror tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_entries (
			id, run_id, sheet_id, sheet_name, row_id, row_ref, field,
			old_raw, new_raw, old_value, new_value, delta,
			actor, changed_at, period_end, audited_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing mirror insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		_, err := stmt.ExecContext(ctx,
			entry.ID,
			entry.RunID,
			entry.SheetID,
			entry.SheetName,
			entry.RowID,
			entry.RowRef,
			entry.Field,
			entry.OldRaw,
			entry.NewRaw,
			nullFloat(entry.OldValue),
			nullFloat(entry.NewValue),
			nullFloat(entry.Delta),
			entry.Actor,
			entry.ChangedAt.UTC(),
			entry.PeriodEnd.UTC(),
			entry.AuditedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting mirror entry %s: %w", entry.ID, err)
		}
	}
	return tx.Commit()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// Filter controls which entries Query returns.
type Filter struct {
	SheetID int64
	Actor   string
	Field   string
	Since   *time.Time
	Until   *time.Time
	Limit   int
}

// Query returns entries matching the filter, newest change first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]audit.Entry, error) {
	var conditions []string
	var args []any

	if filter.SheetID != 0 {
		conditions = append(conditions, "sheet_id = ?")
		args = append(args, filter.SheetID)
	}
	if filter.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, filter.Actor)
	}
	if filter.Field != "" {
		conditions = append(conditions, "field = ?")
		args = append(args, filter.Field)
	}
	if filter.Since != nil {
		conditions = append(conditions, "changed_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		conditions = append(conditions, "changed_at <= ?")
		args = append(args, filter.Until.UTC())
	}

	query := `
		SELECT id, run_id, sheet_id, sheet_name, row_id, row_ref, field,
		       old_raw, new_raw, old_value, new_value, delta,
		       actor, changed_at, period_end, audited_at
		FROM audit_entries`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY changed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying mirror: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var oldValue, newValue, delta sql.NullFloat64
		err := rows.Scan(
			&entry.ID, &entry.RunID, &entry.SheetID, &entry.SheetName,
			&entry.RowID, &entry.RowRef, &entry.Field,
			&entry.OldRaw, &entry.NewRaw, &oldValue, &newValue, &delta,
			&entry.Actor, &entry.ChangedAt, &entry.PeriodEnd, &entry.AuditedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning mirror entry: %w", err)
		}
		if oldValue.Valid {
			entry.OldValue = &oldValue.Float64
		}
		if newValue.Valid {
			entry.NewValue = &newValue.Float64
		}
		if delta.Valid {
			entry.Delta = &delta.Float64
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountByRun returns how many entries each run produced, for the report
// command's summary footer.
func (s *Store) CountByRun(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, COUNT(*) FROM audit_entries GROUP BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("counting mirror runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var runID string
		var count int
		if err := rows.Scan(&runID, &count); err != nil {
			return nil, err
		}
		counts[runID] = count
	}
	return counts, rows.Err()
}
