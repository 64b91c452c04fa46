package cmd

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a previously interrupted run",
	Long: `Resume is an alias for run: the pipeline's progress store and
family cache make every run idempotent, so resuming a previous attempt
and starting a fresh one are the same operation. resume exists as a
separate command only to say what the operator means.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
