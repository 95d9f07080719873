// Package runstate persists the watermark between audit runs: the instant up
// to which changes have already been accounted for.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// state is the on-disk document.
type state struct {
	LastRunCompleted time.Time `json:"last_run_completed"`
	SavedAt          time.Time `json:"saved_at"`
}

// Store reads and writes the watermark file. There is exactly one audit run
// active at a time by scheduling convention, so no locking is done here.
type Store struct {
	path string
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the persisted watermark, or nil when none exists. A missing
// file is a normal first run and returns (nil, nil); unreadable or malformed
// content also degrades to first-run mode, with the cause returned so the
// caller can log it.
func (s *Store) Load() (*time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading watermark %s: %w", s.path, err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing watermark %s: %w", s.path, err)
	}
	if st.LastRunCompleted.IsZero() {
		return nil, fmt.Errorf("watermark %s: empty timestamp", s.path)
	}
	return &st.LastRunCompleted, nil
}

// Save persists the watermark. The caller passes the timestamp captured at
// the start of the run that just completed, not wall-clock now, which closes
// the race window between fetch and completion. Save must only be called
// after all sink batches have been attempted.
func (s *Store) Save(runStartedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(state{
		LastRunCompleted: runStartedAt,
		SavedAt:          time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling watermark: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing watermark %s: %w", s.path, err)
	}
	return nil
}
