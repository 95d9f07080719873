package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gridaudit",
	Short: "Post-period change auditing for grid-hosted work-order reports",
	Long: `gridaudit reconstructs what changed on tracked billing fields since the
last audit run and flags edits made after a row's reporting period closed.
Findings are appended to an audit sheet and optionally mirrored to a local
SQLite database for querying.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".gridaudit.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
