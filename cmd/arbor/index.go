package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Resolve a directory and write the SQLite index",
	Long:  "Loads every syntax file under path, runs a package pass and the configured rules, and writes the resolved graph to the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	if flagForce {
		cfg, err := loadConfig(findRepoRoot(targetDir))
		if err != nil {
			return err
		}
		if err := os.Remove(cfg.DBPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", cfg.DBPath)
	}

	e, cfg, err := newEngine(targetDir, true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loadStart := time.Now()
	uris, err := e.LoadDirectory(ctx, targetDir)
	if err != nil {
		return fmt.Errorf("loading: %w", err)
	}
	loadDuration := time.Since(loadStart)

	resolveStart := time.Now()
	res, err := e.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolving: %w", err)
	}
	resolveDuration := time.Since(resolveStart)

	fmt.Fprintf(os.Stderr, "Indexed %d documents from %s in %s (load: %s, resolve: %s)\n",
		len(uris),
		targetDir,
		time.Since(start).Round(time.Millisecond),
		loadDuration.Round(time.Millisecond),
		resolveDuration.Round(time.Millisecond),
	)
	if res.Diff != nil {
		fmt.Fprintf(os.Stderr, "Symbols: +%d -%d ~%d, %d diagnostics\n",
			len(res.Diff.Added), len(res.Diff.Removed), len(res.Diff.Changed), res.Diagnostics)
	}
	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.DBPath)
	return nil
}
