package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jra3/glutton/internal/aligntool"
	"github.com/jra3/glutton/internal/cache"
	"github.com/jra3/glutton/internal/config"
	"github.com/jra3/glutton/internal/pipeline"
	"github.com/jra3/glutton/internal/progress"
	"github.com/jra3/glutton/internal/refdb"
	"github.com/jra3/glutton/internal/searchtool"
	"github.com/jra3/glutton/internal/tool"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the alignment pipeline against the configured input files",
	Long: `Run stages every configured input file through search, family
grouping, and alignment. Interrupting and re-invoking run (or resume)
continues from exactly where the previous attempt left off.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile, os.Getenv)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if refDB != "" {
		cfg.RefDB.Path = refDB
	}
	if cacheDir != "" {
		cfg.Cache.Dir = cacheDir
	}
	if workers > 0 {
		cfg.Queue.Workers = workers
	}
	return cfg, nil
}

func buildCoordinator(cfg *config.Config) (*pipeline.Coordinator, *refdb.SQLiteDB, error) {
	db, err := refdb.OpenSQLite(cfg.RefDB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open reference database: %w", err)
	}

	c, err := cache.Open(cfg.Cache.Dir, cfg.Cache.Prefix)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	progressDir := cfg.Progress.Dir
	if progressDir == "" {
		progressDir = filepath.Join(cfg.Cache.Dir, "..", "progress")
	}
	store, err := progress.Open(progressDir)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open progress store: %w", err)
	}

	searcher := searchtool.New(tool.New("blastx", cfg.Search.Binary, cfg.Search.RatePerSecond, cfg.Search.Burst))
	aligner := aligntool.New(tool.New("pagan", cfg.Align.Binary, cfg.Align.RatePerSecond, cfg.Align.Burst))

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(cfg.Cache.Dir, "..", "work")
	}

	co := &pipeline.Coordinator{
		Store:        store,
		Cache:        c,
		DB:           db,
		Search:       searcher,
		Align:        aligner,
		WorkDir:      workDir,
		SearchDBPath: cfg.RefDB.Path,
		Workers:      cfg.Queue.Workers,
		MaxQueueSize: cfg.Queue.MaxSize,
	}
	return co, db, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("no input files configured; add at least one entry under 'inputs' in the config file")
	}

	co, db, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	inputs := make([]pipeline.InputFile, len(cfg.Inputs))
	for i, in := range cfg.Inputs {
		inputs[i] = pipeline.InputFile{Path: in.Path, Label: in.Label, Species: in.Species}
	}

	result, err := co.Run(context.Background(), inputs)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	fmt.Printf("complete: %d, failed: %d, outstanding: %d\n", result.Completed, result.Failed, result.Outstanding)
	if !result.Done() {
		return fmt.Errorf("run ended with %d families still outstanding; invoke run again to continue", result.Outstanding)
	}
	return nil
}
