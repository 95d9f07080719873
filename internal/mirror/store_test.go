package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/openclerk/gridaudit/internal/audit"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEntry(id, runID, actor string, changedAt time.Time) audit.Entry {
	delta := 5.0
	oldValue, newValue := 10.0, 15.0
	return audit.Entry{
		ID:        id,
		RunID:     runID,
		SheetID:   1,
		SheetName: "WO Report",
		RowID:     10,
		Field:     "Quantity",
		OldRaw:    "10",
		NewRaw:    "15",
		OldValue:  &oldValue,
		NewValue:  &newValue,
		Delta:     &delta,
		Actor:     actor,
		ChangedAt: changedAt,
		PeriodEnd: time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC),
		AuditedAt: time.Date(2024, 7, 10, 6, 0, 0, 0, time.UTC),
	}
}

func TestAppendAndQueryRoundTrips(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := sampleEntry("e1", "run-1", "editor@example.com", time.Date(2024, 7, 9, 10, 0, 0, 0, time.UTC))
	if err := store.Append(ctx, []audit.Entry{entry}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}

	got := entries[0]
	if got.Actor != "editor@example.com" {
		t.Errorf("Actor = %q", got.Actor)
	}
	if got.Delta == nil || *got.Delta != 5 {
		t.Errorf("Delta = %v, want 5", got.Delta)
	}
	if !got.ChangedAt.Equal(entry.ChangedAt) {
		t.Errorf("ChangedAt = %v, want %v", got.ChangedAt, entry.ChangedAt)
	}
}

func TestAppendGeneratesMissingIDs(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := sampleEntry("", "run-1", "a@example.com", time.Now().UTC())
	if err := store.Append(ctx, []audit.Entry{entry}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].ID == "" {
		t.Error("entry should have a generated ID")
	}
}

func TestQueryFilters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entries := []audit.Entry{
		sampleEntry("e1", "run-1", "alice@example.com", time.Date(2024, 7, 9, 10, 0, 0, 0, time.UTC)),
		sampleEntry("e2", "run-1", "bob@example.com", time.Date(2024, 7, 12, 10, 0, 0, 0, time.UTC)),
		sampleEntry("e3", "run-2", "alice@example.com", time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)),
	}
	if err := store.Append(ctx, entries); err != nil {
		t.Fatalf("Append: %v", err)
	}

	byActor, err := store.Query(ctx, Filter{Actor: "alice@example.com"})
	if err != nil {
		t.Fatalf("Query by actor: %v", err)
	}
	if len(byActor) != 2 {
		t.Errorf("actor filter returned %d, want 2", len(byActor))
	}

	since := time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC)
	recent, err := store.Query(ctx, Filter{Since: &since})
	if err != nil {
		t.Fatalf("Query since: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("since filter returned %d, want 2", len(recent))
	}
	if recent[0].ID != "e3" {
		t.Errorf("first entry = %s, want newest (e3)", recent[0].ID)
	}

	limited, err := store.Query(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("Query limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit filter returned %d, want 1", len(limited))
	}
}

func TestCountByRun(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, []audit.Entry{
		sampleEntry("e1", "run-1", "a@example.com", time.Now().UTC()),
		sampleEntry("e2", "run-1", "a@example.com", time.Now().UTC()),
		sampleEntry("e3", "run-2", "a@example.com", time.Now().UTC()),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	counts, err := store.CountByRun(ctx)
	if err != nil {
		t.Fatalf("CountByRun: %v", err)
	}
	if counts["run-1"] != 2 || counts["run-2"] != 1 {
		t.Errorf("counts = %v, want run-1:2 run-2:1", counts)
	}
}

func TestReady(t *testing.T) {
	store := setupStore(t)
	if err := store.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
}
