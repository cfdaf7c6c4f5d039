package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand(newCommandContext())

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand(cc *commandContext) *cobra.Command {
	root := &cobra.Command{
		Use:   "tidy-sort",
		Short: "Sort downloaded TV episodes into a media library",
		Long: `tidy-sort moves or copies downloaded TV episode files into your library.
It works out the series from the file name, looks the episode up with the
enabled metadata providers and renders the destination from your configured
folder and file name templates.

Every attempt is recorded so failed files can be corrected by hand and sorted
again into an explicitly chosen series.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cc.opts.configPath, "config", "c", "", "Path to the configuration file (default ~/.tidy-sort/config.json)")
	root.PersistentFlags().StringVar(&cc.opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		newOrganizeCommand(cc),
		newCorrectCommand(cc),
		newResultsCommand(cc),
		newLibraryCommand(cc),
		newJournalCommand(cc),
		newConfigCommand(cc),
	)
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
