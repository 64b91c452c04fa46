package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jra3/glutton/internal/progress"
	"github.com/jra3/glutton/internal/refdb"
	"github.com/jra3/glutton/pkg/inspectfs"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [mountpoint]",
	Short: "Mount a read-only view of the progress store and cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("debug", false, "enable FUSE debug logging")
}

func runInspect(cmd *cobra.Command, args []string) error {
	mountpoint := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := refdb.OpenSQLite(cfg.RefDB.Path)
	if err != nil {
		return fmt.Errorf("open reference database: %w", err)
	}
	defer db.Close()

	progressDir := cfg.Progress.Dir
	if progressDir == "" {
		progressDir = filepath.Join(cfg.Cache.Dir, "..", "progress")
	}
	store, err := progress.Open(progressDir)
	if err != nil {
		return fmt.Errorf("open progress store: %w", err)
	}

	debug, _ := cmd.Flags().GetBool("debug")

	if err := os.MkdirAll(mountpoint, 0o755); err != nil {
		return fmt.Errorf("create mountpoint: %w", err)
	}

	ifs := inspectfs.New(store, db, debug)
	server, err := ifs.Mount(mountpoint)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	fmt.Printf("mounted read-only inspection view at %s, press Ctrl+C to unmount\n", mountpoint)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("unmounting...")
	return server.Unmount()
}
