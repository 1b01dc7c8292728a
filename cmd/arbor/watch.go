package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.lsp.dev/uri"

	"github.com/jward/arbor"
	"github.com/jward/arbor/internal/syntax"
)

var flagMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the index current while files change",
	Long:  "Indexes path, then feeds every change to a syntax file to the engine as an edit. The debounced package pass rewrites the index once edits settle. Serves Prometheus metrics when a metrics address is configured.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "listen address of the /metrics endpoint (overrides config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	e, cfg, err := newEngine(targetDir, true)
	if err != nil {
		return err
	}
	defer e.Close()
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := e.LoadDirectory(ctx, targetDir); err != nil {
		return fmt.Errorf("loading: %w", err)
	}
	res, err := e.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolving: %w", err)
	}
	logger.Info("initial pass",
		slog.String("pass", res.ID),
		slog.Int("documents", res.Documents),
		slog.Int("diagnostics", res.Diagnostics))

	addr := cfg.MetricsAddr
	if flagMetricsAddr != "" {
		addr = flagMetricsAddr
	}
	if addr != "" {
		srv := newMetricsServer(addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", slog.String("addr", addr))
	}

	w, err := newWatcher(e, logger)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.AddTree(targetDir); err != nil {
		return err
	}
	logger.Info("watching", slog.String("root", targetDir))
	w.Run(ctx)
	return nil
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// sourceWatcher turns file system events under a tree into engine edits.
type sourceWatcher struct {
	fsw    *fsnotify.Watcher
	engine *arbor.Engine
	logger *slog.Logger
}

func newWatcher(e *arbor.Engine, logger *slog.Logger) (*sourceWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &sourceWatcher{fsw: fsw, engine: e, logger: logger}, nil
}

func (w *sourceWatcher) Close() error {
	return w.fsw.Close()
}

// AddTree watches root and every directory below it, skipping hidden
// directories, node_modules and vendor.
func (w *sourceWatcher) AddTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("cannot watch directory", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// Run handles events until ctx is done or the watcher is closed.
func (w *sourceWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if err := w.handle(ctx, ev); err != nil {
				w.logger.Warn("applying change", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher", slog.String("error", err.Error()))
		}
	}
}

func (w *sourceWatcher) handle(ctx context.Context, ev fsnotify.Event) error {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			return w.AddTree(ev.Name)
		}
	}
	if !arbor.IsSyntaxFile(ev.Name) {
		return nil
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return err
	}
	u := uri.File(abs)

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		err := w.engine.CloseDocument(ctx, u)
		if errors.Is(err, arbor.ErrUnknownDocument) {
			return nil
		}
		return err
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		f, err := syntax.DecodeFile(abs)
		if err != nil {
			// Editors often write partial files; the next write fixes it.
			w.logger.Debug("skipping undecodable file", slog.String("path", abs), slog.String("error", err.Error()))
			return nil
		}
		err = w.engine.Update(ctx, u, f)
		if errors.Is(err, arbor.ErrUnknownDocument) {
			return w.engine.Open(ctx, u, f)
		}
		return err
	}
	return nil
}
