// Package script runs user-authored Risor rules over a resolved package.
//
// A rule is a *.risor file in the rules directory. Files whose name starts
// with an underscore are library modules: they are never run as rules but
// rules may import them. Rules see the resolved graph through the globals
// symbols, usages, report and log.
package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/arbor/internal/diag"
)

// Extension is the file extension of rule scripts.
const Extension = ".risor"

// SymbolInfo is the view of a symbol handed to rules.
type SymbolInfo struct {
	Name       string
	FullName   string
	Kind       string
	Visibility string
	Type       string
	URI        string
	Line       int
	Col        int
}

// Location is a 0-based position in a document.
type Location struct {
	URI  string
	Line int
	Col  int
}

// Host exposes the resolved package to rules.
type Host interface {
	// Symbols returns the declared symbols of the given kind, or of every
	// kind when kind is empty. An unknown kind is an error.
	Symbols(kind string) ([]SymbolInfo, error)
	// Usages returns the usage sites of the symbol with the given full name.
	Usages(fullName string) []Location
}

// Finding is a problem reported by a rule through report().
type Finding struct {
	Rule     string
	URI      string
	Line     int
	Col      int
	Message  string
	Severity diag.Severity
}

// Runtime loads rules and evaluates them in an embedded Risor VM.
type Runtime struct {
	rulesDir string
	fsys     fs.FS
	logger   *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithFS loads rules and imported modules from fsys instead of the rules
// directory on disk.
func WithFS(fsys fs.FS) Option {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the log global. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime for the rules in rulesDir. An empty rulesDir
// without WithFS yields a Runtime with no rules.
func NewRuntime(rulesDir string, opts ...Option) *Runtime {
	r := &Runtime{rulesDir: rulesDir, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rules lists the rule files in name order.
func (r *Runtime) Rules() ([]string, error) {
	var names []string
	switch {
	case r.fsys != nil:
		entries, err := fs.ReadDir(r.fsys, ".")
		if err != nil {
			return nil, fmt.Errorf("script: list rules: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && isRule(e.Name()) {
				names = append(names, e.Name())
			}
		}
	case r.rulesDir != "":
		entries, err := os.ReadDir(r.rulesDir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("script: list rules: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && isRule(e.Name()) {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func isRule(name string) bool {
	return strings.HasSuffix(name, Extension) && !strings.HasPrefix(name, "_")
}

// LoadRule reads the source of a rule or module.
func (r *Runtime) LoadRule(name string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(path.Clean(filepath.ToSlash(name)), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("script: load %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}
	full := name
	if !filepath.IsAbs(name) {
		full = filepath.Join(r.rulesDir, name)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("script: load %s: %w", full, err)
	}
	return string(data), nil
}

// Run evaluates every rule against host. A failing rule does not stop the
// others; its error is joined into the returned error and the findings it
// reported before failing are kept.
func (r *Runtime) Run(ctx context.Context, host Host) ([]Finding, error) {
	names, err := r.Rules()
	if err != nil {
		return nil, err
	}
	var (
		findings []Finding
		errs     []error
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		src, err := r.LoadRule(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found, err := r.RunSource(ctx, strings.TrimSuffix(name, Extension), src, host)
		findings = append(findings, found...)
		if err != nil {
			r.logger.Warn("rule failed", slog.String("rule", name), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return findings, errors.Join(errs...)
}

// RunSource evaluates one rule given as source.
func (r *Runtime) RunSource(ctx context.Context, rule, source string, host Host) ([]Finding, error) {
	rep := &reporter{rule: rule}
	globals := r.buildGlobals(host, rep, rule)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	if _, err := risor.Eval(ctx, source, opts...); err != nil {
		return rep.findings, fmt.Errorf("script: rule %s: %w", rule, err)
	}
	return rep.findings, nil
}

func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.fsys,
			Extensions:  []string{Extension},
		})
	}
	if r.rulesDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: names,
			SourceDir:   r.rulesDir,
			Extensions:  []string{Extension},
		})
	}
	return nil
}

func (r *Runtime) buildGlobals(host Host, rep *reporter, rule string) map[string]any {
	return map[string]any{
		"symbols": makeSymbolsFn(host),
		"usages":  makeUsagesFn(host),
		"report":  makeReportFn(rep),
		"log":     mustProxy(&logObject{logger: r.logger.With(slog.String("rule", rule))}),
	}
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("script: proxy error: %v", err))
	}
	return p
}
