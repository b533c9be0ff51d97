package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/partsbin/internal/apperror"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "partsbin",
	Short: "Inventory manager for electronics components",
	Long: `partsbin keeps track of electronics components in local inventories.

Examples:
  partsbin component add NE555 --type IC --value "Function: timer, Package: DIP-8" --quantity 10
  partsbin component take NE555 2
  partsbin export parts.xlsx
  partsbin ideas --all`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the partsbin version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "partsbin version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory (overrides storage.data_dir)")

	rootCmd.AddCommand(
		versionCmd,
		componentCmd,
		categoryCmd,
		inventoryCmd,
		importCmd,
		exportCmd,
		ideasCmd,
		settingsCmd,
		configCmd,
		serveCmd,
		stopCmd,
		statusCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%s", apperror.UserMessage(err))
		os.Exit(1)
	}
}
