package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openclerk/gridaudit/internal/audit"
	"github.com/openclerk/gridaudit/internal/coerce"
	"github.com/openclerk/gridaudit/internal/config"
	"github.com/openclerk/gridaudit/internal/grid"
	"github.com/openclerk/gridaudit/internal/logging"
	"github.com/openclerk/gridaudit/internal/mirror"
	"github.com/openclerk/gridaudit/internal/progress"
	"github.com/openclerk/gridaudit/internal/runstate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one audit pass over the configured sheets",
	Long: `Fetches rows from every sheet matching the configured name patterns,
reconciles each tracked field's revision history against the last run's
watermark, and writes unauthorized post-period changes to the audit sink.`,
	RunE: runAudit,
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "detect changes but write nothing and keep the watermark")
	rootCmd.AddCommand(runCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	// The watermark advances to this instant, captured before any fetch.
	runStartedAt := time.Now().UTC()

	client := grid.WithRetry(
		grid.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, time.Duration(cfg.API.TimeoutSeconds)*time.Second),
		grid.RetryConfig{
			MaxAttempts: cfg.Tuning.RetryMaxAttempts,
			BaseDelay:   cfg.Tuning.RetryBaseDelay(),
			HistoryPace: cfg.Tuning.HistoryPace(),
		},
		logger,
	)

	rows, err := fetchRows(ctx, client, cfg, logger)
	if err != nil {
		return err
	}

	sink, cleanup, err := buildSink(client, cfg, logger, dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	var state *runstate.Store
	if !dryRun {
		state = runstate.NewStore(cfg.StatePath)
	}

	engine := audit.New(client, sink, state, audit.Config{
		Fields:                trackedFields(cfg),
		BoundaryWeekday:       cfg.Period.Weekday(),
		Location:              cfg.Period.Location(),
		RowBatchSize:          cfg.Tuning.RowBatchSize,
		LargeDatasetThreshold: cfg.Tuning.LargeDatasetThreshold,
		FlushBatchSize:        cfg.Tuning.FlushBatchSize,
		RowDelay:              cfg.Tuning.RowDelay(),
		BatchDelay:            cfg.Tuning.BatchDelay(),
	}, logger, progress.NewReporter())

	summary, err := engine.Run(ctx, rows, runStartedAt)
	if err != nil {
		return err
	}

	if summary.Disabled {
		fmt.Println("Audit disabled: no audit sheet configured.")
		return nil
	}
	fmt.Printf("Audit complete: %d rows, %d findings, %d/%d batches ok, %s\n",
		summary.RowsProcessed,
		summary.EntriesWritten,
		summary.BatchesAttempted-summary.FailedBatches,
		summary.BatchesAttempted,
		summary.Elapsed.Round(time.Second))
	return nil
}

// fetchRows resolves the configured sheet name patterns and flattens every
// matching sheet's rows, parsing each row's reference date.
func fetchRows(ctx context.Context, client grid.Client, cfg *config.Config, logger *zap.Logger) ([]grid.SourceRow, error) {
	sheets, err := client.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sheets: %w", err)
	}

	var rows []grid.SourceRow
	matched := 0
	for _, sheet := range sheets {
		if sheet.ID == cfg.Sheets.AuditSheetID || !matchesAny(sheet.Name, cfg.Sheets.Include) {
			continue
		}
		matched++

		sheetRows, err := client.ListRows(ctx, sheet.ID)
		if err != nil {
			logger.Warn("skipping unreadable sheet",
				zap.String("sheet", sheet.Name),
				zap.Error(err))
			continue
		}
		for i := range sheetRows {
			if raw, ok := sheetRows[i].Cells[cfg.Period.ReferenceColumn].(string); ok {
				sheetRows[i].ReferenceDate = coerce.Timestamp(raw)
			}
		}
		rows = append(rows, sheetRows...)
	}

	logger.Info("rows fetched",
		zap.Int("sheets_matched", matched),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func trackedFields(cfg *config.Config) []audit.Field {
	fields := make([]audit.Field, 0, len(cfg.TrackedColumns))
	for _, col := range cfg.TrackedColumns {
		fields = append(fields, audit.Field{Column: col.Column, Kind: col.Kind})
	}
	return fields
}

// buildSink assembles the audit sink: the audit sheet, plus the local SQLite
// mirror when configured. A dry run gets a discard sink so detection still
// exercises the full path.
func buildSink(client grid.Client, cfg *config.Config, logger *zap.Logger, dryRun bool) (audit.Sink, func(), error) {
	noop := func() {}

	if dryRun {
		return discardSink{}, noop, nil
	}
	if cfg.Sheets.AuditSheetID == 0 {
		return nil, noop, nil
	}

	sheetSink := audit.NewSheetSink(client, cfg.Sheets.AuditSheetID)
	if cfg.MirrorPath == "" {
		return sheetSink, noop, nil
	}

	store, err := mirror.Open(cfg.MirrorPath)
	if err != nil {
		return nil, noop, fmt.Errorf("opening mirror: %w", err)
	}
	return audit.NewMultiSink(logger, sheetSink, store), func() { store.Close() }, nil
}

// discardSink accepts everything and writes nothing.
type discardSink struct{}

func (discardSink) Ready(ctx context.Context) error { return nil }

func (discardSink) Append(ctx context.Context, entries []audit.Entry) error { return nil }
