package runstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileIsFirstRun(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "state.json"))
	watermark, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if watermark != nil {
		t.Errorf("watermark = %v, want nil on first run", watermark)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "audit", "state.json"))
	started := time.Date(2024, 7, 10, 6, 0, 0, 0, time.UTC)

	if err := store.Save(started); err != nil {
		t.Fatalf("Save: %v", err)
	}

	watermark, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if watermark == nil {
		t.Fatal("watermark = nil after Save")
	}
	if !watermark.Equal(started) {
		t.Errorf("watermark = %v, want %v", watermark, started)
	}
}

func TestLoadMalformedDegradesToFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	watermark, err := loadFrom(t, path)
	if watermark != nil {
		t.Errorf("watermark = %v, want nil for malformed state", watermark)
	}
	if err == nil {
		t.Error("expected a parse error for the caller to log")
	}
}

func TestLoadEmptyTimestampDegradesToFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"saved_at":"2024-07-10T06:00:00Z"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	watermark, err := loadFrom(t, path)
	if watermark != nil {
		t.Error("zero timestamp must not become a watermark")
	}
	if err == nil {
		t.Error("expected an error describing the empty timestamp")
	}
}

func loadFrom(t *testing.T, path string) (*time.Time, error) {
	t.Helper()
	return NewStore(path).Load()
}
