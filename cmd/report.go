package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclerk/gridaudit/internal/config"
	"github.com/openclerk/gridaudit/internal/mirror"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Query the local audit mirror",
	Long:  `Lists findings recorded in the local SQLite mirror, newest first.`,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().String("since", "", "only findings changed on/after this date (YYYY-MM-DD)")
	reportCmd.Flags().Int64("sheet", 0, "filter by sheet ID")
	reportCmd.Flags().String("actor", "", "filter by actor email or name")
	reportCmd.Flags().String("field", "", "filter by field name")
	reportCmd.Flags().Int("limit", 50, "maximum findings to list")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.MirrorPath == "" {
		return fmt.Errorf("no mirror configured: set mirror_path in %s", cfgFile)
	}

	store, err := mirror.Open(cfg.MirrorPath)
	if err != nil {
		return err
	}
	defer store.Close()

	filter := mirror.Filter{}
	filter.SheetID, _ = cmd.Flags().GetInt64("sheet")
	filter.Actor, _ = cmd.Flags().GetString("actor")
	filter.Field, _ = cmd.Flags().GetString("field")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	if sinceStr, _ := cmd.Flags().GetString("since"); sinceStr != "" {
		since, parseErr := time.Parse("2006-01-02", sinceStr)
		if parseErr != nil {
			return fmt.Errorf("invalid --since %q: %w", sinceStr, parseErr)
		}
		filter.Since = &since
	}

	ctx := context.Background()
	entries, err := store.Query(ctx, filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No findings.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHANGED AT\tSHEET\tROW\tFIELD\tOLD\tNEW\tDELTA\tACTOR")
	for _, entry := range entries {
		delta := ""
		if entry.Delta != nil {
			delta = fmt.Sprintf("%+g", *entry.Delta)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			entry.ChangedAt.Format("2006-01-02 15:04"),
			entry.SheetName,
			entry.RowID,
			entry.Field,
			entry.OldRaw,
			entry.NewRaw,
			delta,
			entry.Actor)
	}
	w.Flush()

	counts, err := store.CountByRun(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d findings across %d runs\n", len(entries), len(counts))
	return nil
}
