package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/config"
	"github.com/jward/arbor/rules"
)

var (
	flagDB       string
	flagFormat   string
	flagConfig   string
	flagLogLevel string
	flagRulesDir string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "arbor",
	Short:         "Incremental name and type resolution for arbor sources",
	Long:          "Arbor resolves parsed syntax trees into a symbol graph, reports diagnostics, runs Risor rules and writes the result to a SQLite index for queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .arbor/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: arbor.yaml in the repo root)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagRulesDir, "rules-dir", "", "directory of *.risor rules (overrides config and the embedded rules)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(queryCmd)
}

// loadConfig reads the config file for repoRoot and applies flag overrides.
func loadConfig(repoRoot string) (config.Config, error) {
	path := flagConfig
	if path == "" {
		path = filepath.Join(repoRoot, config.FileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagRulesDir != "" {
		abs, err := filepath.Abs(flagRulesDir)
		if err != nil {
			return config.Config{}, fmt.Errorf("resolving rules dir %q: %w", flagRulesDir, err)
		}
		cfg.RulesDir = abs
	}
	cfg.DBPath = resolveDBPath(repoRoot, cfg.DBPath)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
}

// newEngine builds an engine for the repository containing targetDir. With
// persist false the index is not written.
func newEngine(targetDir string, persist bool) (*arbor.Engine, config.Config, error) {
	repoRoot := findRepoRoot(targetDir)
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return nil, config.Config{}, err
	}
	if !persist {
		cfg.DBPath = ""
	} else if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, config.Config{}, fmt.Errorf("creating %s: %w", filepath.Dir(cfg.DBPath), err)
	}

	opts := []arbor.Option{arbor.WithConfig(&cfg), arbor.WithLogger(newLogger(cfg))}
	// Rule source: a configured rules dir overrides the embedded rules.
	if cfg.RulesDir == "" {
		opts = append(opts, arbor.WithRulesFS(rules.FS))
	}
	e, err := arbor.New(opts...)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("creating engine: %w", err)
	}
	return e, cfg, nil
}

// resolveTargetDir returns the absolute path of the directory to load.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath picks the database path: the --db flag, then the configured
// path, then .arbor/index.db under the repo root.
func resolveDBPath(repoRoot, configured string) string {
	switch {
	case flagDB != "" && filepath.IsAbs(flagDB):
		return flagDB
	case flagDB != "":
		return filepath.Join(repoRoot, flagDB)
	case configured != "":
		return configured
	}
	return filepath.Join(repoRoot, ".arbor", "index.db")
}
