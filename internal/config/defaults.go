package config

import "time"

// DefaultConfig returns a Config with the observed production constants.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			TimeoutSeconds: 30,
		},
		Sheets: SheetsConfig{
			Include: []string{"*"},
		},
		TrackedColumns: []TrackedColumn{
			{Column: "Quantity", Kind: "count"},
			{Column: "Unit Rate", Kind: "currency"},
		},
		Period: PeriodConfig{
			BoundaryWeekday: "sunday",
			Timezone:        "UTC",
			ReferenceColumn: "Week Ending",
		},
		Tuning: TuningConfig{
			RowBatchSize:          150,
			LargeDatasetThreshold: 2000,
			FlushBatchSize:        300,
			RetryMaxAttempts:      3,
			RetryBaseDelayMS:      1000,
			HistoryPaceMS:         100,
			RowDelayMS:            50,
			BatchDelayMS:          2000,
		},
		StatePath:  ".gridaudit/state.json",
		MirrorPath: "",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Duration helpers so callers do not repeat millisecond conversions.

func (t TuningConfig) RetryBaseDelay() time.Duration {
	return time.Duration(t.RetryBaseDelayMS) * time.Millisecond
}

func (t TuningConfig) HistoryPace() time.Duration {
	return time.Duration(t.HistoryPaceMS) * time.Millisecond
}

func (t TuningConfig) RowDelay() time.Duration {
	return time.Duration(t.RowDelayMS) * time.Millisecond
}

func (t TuningConfig) BatchDelay() time.Duration {
	return time.Duration(t.BatchDelayMS) * time.Millisecond
}

// weekdays maps config names to time.Weekday values.
var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekday resolves the configured boundary day. Defaults to Sunday for
// unknown values; Validate rejects those first.
func (p PeriodConfig) Weekday() time.Weekday {
	if day, ok := weekdays[p.BoundaryWeekday]; ok {
		return day
	}
	return time.Sunday
}

// Location resolves the configured timezone, defaulting to UTC.
func (p PeriodConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
