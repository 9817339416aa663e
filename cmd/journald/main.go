// Command journald runs the journal backend: an HTTP API over the SQLite
// entry store plus the background analysis pipeline, with snapshot and
// integrity tooling for operating the store offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "journald",
	Short:   "Journal backend server and store tooling",
	Version: version,
	Long: `Journal backend server and store tooling.

Examples:
  journald serve
  journald export --output backup.json
  journald import backup.json
  journald check`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
