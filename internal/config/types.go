package config

// TrackedColumn pairs a source column title with its coercion kind.
type TrackedColumn struct {
	Column string `yaml:"column" koanf:"column"`
	// Kind is "currency" or "count".
	Kind string `yaml:"kind" koanf:"kind"`
}

// APIConfig holds grid service connection settings. The token is normally
// supplied via GRIDAUDIT_API_TOKEN rather than the file.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" koanf:"base_url"`
	Token          string `yaml:"token" koanf:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds" koanf:"timeout_seconds"`
}

// SheetsConfig selects which sheets are audited and where findings go.
type SheetsConfig struct {
	// Include are glob patterns matched against sheet names.
	Include []string `yaml:"include" koanf:"include"`
	// AuditSheetID is the sink sheet. Zero disables auditing.
	AuditSheetID int64 `yaml:"audit_sheet_id" koanf:"audit_sheet_id"`
}

// PeriodConfig controls reporting period computation.
type PeriodConfig struct {
	// BoundaryWeekday names the day a reporting week closes on.
	BoundaryWeekday string `yaml:"boundary_weekday" koanf:"boundary_weekday"`
	Timezone        string `yaml:"timezone" koanf:"timezone"`
	// ReferenceColumn is the column holding each row's reference date.
	ReferenceColumn string `yaml:"reference_column" koanf:"reference_column"`
}

// TuningConfig carries the pacing and batching constants.
type TuningConfig struct {
	RowBatchSize          int `yaml:"row_batch_size" koanf:"row_batch_size"`
	LargeDatasetThreshold int `yaml:"large_dataset_threshold" koanf:"large_dataset_threshold"`
	FlushBatchSize        int `yaml:"flush_batch_size" koanf:"flush_batch_size"`
	RetryMaxAttempts      int `yaml:"retry_max_attempts" koanf:"retry_max_attempts"`
	RetryBaseDelayMS      int `yaml:"retry_base_delay_ms" koanf:"retry_base_delay_ms"`
	HistoryPaceMS         int `yaml:"history_pace_ms" koanf:"history_pace_ms"`
	RowDelayMS            int `yaml:"row_delay_ms" koanf:"row_delay_ms"`
	BatchDelayMS          int `yaml:"batch_delay_ms" koanf:"batch_delay_ms"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// Config is the top-level gridaudit configuration, corresponding to
// .gridaudit.yml.
type Config struct {
	API            APIConfig       `yaml:"api" koanf:"api"`
	Sheets         SheetsConfig    `yaml:"sheets" koanf:"sheets"`
	TrackedColumns []TrackedColumn `yaml:"tracked_columns" koanf:"tracked_columns"`
	Period         PeriodConfig    `yaml:"period" koanf:"period"`
	Tuning         TuningConfig    `yaml:"tuning" koanf:"tuning"`
	StatePath      string          `yaml:"state_path" koanf:"state_path"`
	// MirrorPath enables the local SQLite mirror when non-empty.
	MirrorPath string    `yaml:"mirror_path" koanf:"mirror_path"`
	Log        LogConfig `yaml:"log" koanf:"log"`
}
