// Package cmd wires the cobra CLI: a root command carrying the
// persistent flags every subcommand needs (config file, reference
// database, cache directory, worker count), and run/resume/inspect/
// version subcommands. Layout and naming follow the teacher's
// internal/cmd package (rootCmd + cobra.OnInitialize-free init, one
// file per subcommand).
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	refDB    string
	cacheDir string
	workers  int
)

var rootCmd = &cobra.Command{
	Use:   "glutton",
	Short: "Align transcriptomic contigs against a reference gene-family database",
	Long: `glutton stages contig sequences through similarity search against a
reference database, groups the hits into gene families, and runs a
multiple sequence alignment per family. Every stage is restartable:
interrupting a run and invoking the same command again picks up
exactly where it left off.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/glutton/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&refDB, "refdb", "", "path to the reference gene-family database")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "family cache directory")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "worker pool size (0 uses the config default)")
}
