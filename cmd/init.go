package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclerk/gridaudit/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a gridaudit configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(cfgFile); err == nil {
			fmt.Printf("%s already exists; delete it first to re-run the wizard.\n", cfgFile)
			os.Exit(1)
		}
		_, err := config.RunWizard(cfgFile)
		exitOnError(err)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
