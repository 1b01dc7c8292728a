package arbor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jward/arbor/internal/config"
	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/resolve"
	"github.com/jward/arbor/internal/script"
	"github.com/jward/arbor/internal/store"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

const tracerName = "github.com/jward/arbor"

// SyntaxExtensions are the file suffixes LoadDirectory picks up.
var SyntaxExtensions = []string{".arb.yaml", ".arb.yml", ".arb.json"}

// ErrUnknownDocument is returned for operations on a URI that is not open.
var ErrUnknownDocument = resolve.ErrUnknownDocument

// Engine owns a symbol graph and the documents resolved into it. All graph
// access is serialised on one scheduler goroutine; the exported methods are
// safe for concurrent use.
type Engine struct {
	graph    *symbols.Graph
	pkg      *resolve.Package
	sched    *resolve.Scheduler
	debounce *resolve.Debouncer
	store    *store.Store
	rules    *script.Runtime
	logger   *slog.Logger
	tracer   trace.Tracer

	delay     time.Duration
	dbPath    string
	rulesDir  string
	rulesFS   fs.FS
	maxRounds int
	onPass    func(*PassResult)

	mu   sync.Mutex
	last *PassResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithDebounce sets how long edits must settle before the debounced package
// pass runs. Defaults to one second.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = d
	}
}

// WithDBPath persists every package pass to a SQLite index at path.
func WithDBPath(path string) Option {
	return func(e *Engine) {
		e.dbPath = path
	}
}

// WithRulesDir runs the *.risor rules found in dir after every package pass.
func WithRulesDir(dir string) Option {
	return func(e *Engine) {
		e.rulesDir = dir
	}
}

// WithRulesFS loads rules from fsys instead of a directory on disk.
func WithRulesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.rulesFS = fsys
	}
}

// WithMaxRounds caps the inheritance fixpoint. Zero leaves it bounded only by
// progress.
func WithMaxRounds(n int) Option {
	return func(e *Engine) {
		e.maxRounds = n
	}
}

// WithPassHook registers fn to be called on the scheduler goroutine after
// every package pass, including debounced ones. fn must not call back into
// the Engine.
func WithPassHook(fn func(*PassResult)) Option {
	return func(e *Engine) {
		e.onPass = fn
	}
}

// WithConfig applies the settings of a loaded configuration file.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.delay = cfg.Debounce.Std()
		e.dbPath = cfg.DBPath
		e.rulesDir = cfg.RulesDir
		e.maxRounds = cfg.MaxFixpointRounds
	}
}

// New creates an Engine. The SQLite index is opened and migrated when a
// database path is configured.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		delay:  resolve.DefaultDebounce,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.dbPath != "" {
		s, err := store.NewStore(e.dbPath)
		if err != nil {
			return nil, fmt.Errorf("arbor: create store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("arbor: migrate: %w", err)
		}
		e.store = s
	}

	if e.rulesDir != "" || e.rulesFS != nil {
		rtOpts := []script.Option{script.WithLogger(e.logger)}
		if e.rulesFS != nil {
			rtOpts = append(rtOpts, script.WithFS(e.rulesFS))
		}
		e.rules = script.NewRuntime(e.rulesDir, rtOpts...)
	}

	e.graph = symbols.NewGraph()
	e.pkg = resolve.NewPackage(e.graph, resolve.WithLogger(e.logger), resolve.WithMaxRounds(e.maxRounds))
	e.sched = resolve.NewScheduler(e.logger)
	e.debounce = resolve.NewDebouncer(e.delay, func() {
		err := e.sched.Go(func(ctx context.Context) error {
			_, err := e.resolve(ctx)
			return err
		})
		if err != nil {
			e.logger.Debug("debounced pass dropped", slog.String("error", err.Error()))
		}
	})
	return e, nil
}

// Close stops the debounce timer and the scheduler and releases the index.
func (e *Engine) Close() error {
	e.debounce.Stop()
	e.sched.Close()
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Store returns the SQLite index, or nil when none is configured.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a QueryBuilder over the live graph.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{e: e}
}

// LastPass returns the result of the most recent package pass, or nil.
func (e *Engine) LastPass() *PassResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// --- Document lifecycle ---

// Open adds a document, resolves it on its own and arms the debounced
// package pass. Opening an open URI replaces its tree.
func (e *Engine) Open(ctx context.Context, u protocol.DocumentURI, f *syntax.File) error {
	err := e.sched.Do(ctx, func(ctx context.Context) error {
		e.pkg.Open(u, f)
		_, err := e.pkg.ResolveDocument(ctx, u)
		return err
	})
	if err != nil {
		return fmt.Errorf("arbor: open %s: %w", u, err)
	}
	e.debounce.Trigger()
	return nil
}

// Update replaces an open document's tree, bumps its revision, reruns its
// phases and arms the debounced package pass.
func (e *Engine) Update(ctx context.Context, u protocol.DocumentURI, f *syntax.File) error {
	err := e.sched.Do(ctx, func(ctx context.Context) error {
		if _, err := e.pkg.Update(u, f); err != nil {
			return err
		}
		_, err := e.pkg.ResolveDocument(ctx, u)
		return err
	})
	if err != nil {
		return fmt.Errorf("arbor: update %s: %w", u, err)
	}
	e.debounce.Trigger()
	return nil
}

// CloseDocument disposes a document's tree, unregistering its symbols, and
// arms the debounced package pass.
func (e *Engine) CloseDocument(ctx context.Context, u protocol.DocumentURI) error {
	err := e.sched.Do(ctx, func(ctx context.Context) error {
		return e.pkg.Close(u)
	})
	if err != nil {
		return fmt.Errorf("arbor: close %s: %w", u, err)
	}
	e.debounce.Trigger()
	return nil
}

// WaitResolved blocks until the document at u has completed its statements
// phase, the document is closed, or ctx is done.
func (e *Engine) WaitResolved(ctx context.Context, u protocol.DocumentURI) error {
	var d *resolve.Document
	err := e.sched.Do(ctx, func(context.Context) error {
		d = e.pkg.Document(u)
		if d == nil {
			return ErrUnknownDocument
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("arbor: wait %s: %w", u, err)
	}
	return d.Wait(ctx, diag.PhaseStatements)
}

// Documents returns the URIs of the open documents in order.
func (e *Engine) Documents(ctx context.Context) ([]protocol.DocumentURI, error) {
	var out []protocol.DocumentURI
	err := e.sched.Do(ctx, func(context.Context) error {
		for _, d := range e.pkg.Documents() {
			out = append(out, d.URI())
		}
		return nil
	})
	return out, err
}

// --- Package pass ---

// Resolve runs a full package pass now: every document is rebuilt and
// resolved, rules run, and the index is rewritten when configured. A pending
// debounced pass is cancelled.
func (e *Engine) Resolve(ctx context.Context) (*PassResult, error) {
	e.debounce.Cancel()
	var res *PassResult
	err := e.sched.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = e.resolve(ctx)
		return err
	})
	return res, err
}

func (e *Engine) resolve(ctx context.Context) (*PassResult, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Resolve")
	defer span.End()

	pass, err := e.pkg.Resolve(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, fmt.Errorf("arbor: resolve: %w", err)
	}
	res := &PassResult{
		ID:          pass.ID.String(),
		Started:     pass.Started,
		Documents:   pass.Documents,
		Rounds:      pass.Rounds,
		Diagnostics: pass.Diagnostics,
	}

	if e.rules != nil {
		n, err := e.runRules(ctx)
		if err != nil {
			// Rule failures are logged by the runtime; the pass stands.
			span.RecordError(err)
		}
		res.Findings = n
		res.Diagnostics += n
	}

	if e.store != nil {
		diff, err := e.store.CommitSnapshot(e.snapshot(res))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit failed")
			return nil, fmt.Errorf("arbor: commit snapshot: %w", err)
		}
		res.Diff = diff
		if e.rules != nil {
			if err := e.store.SetMetadata(rulesHashKey, e.rulesHash()); err != nil {
				e.logger.Warn("store rules hash", slog.String("error", err.Error()))
			}
		}
	}
	res.Elapsed = time.Since(res.Started)

	span.SetAttributes(
		attribute.String("pass.id", res.ID),
		attribute.Int("pass.documents", res.Documents),
		attribute.Int("pass.diagnostics", res.Diagnostics),
	)

	e.mu.Lock()
	e.last = res
	e.mu.Unlock()
	if e.onPass != nil {
		e.onPass(res)
	}
	return res, nil
}

// PassResult summarises one package pass.
type PassResult struct {
	ID          string
	Started     time.Time
	Elapsed     time.Duration
	Documents   int
	Rounds      int
	Diagnostics int
	// Findings is the number of diagnostics reported by rules.
	Findings int
	// Diff is the change to the stored index; nil without a store.
	Diff *Diff
}

// --- Rules ---

const rulesHashKey = "rules_hash"

func (e *Engine) runRules(ctx context.Context) (int, error) {
	findings, err := e.rules.Run(ctx, &graphHost{e: e})
	n := 0
	for _, f := range findings {
		d := e.pkg.Document(protocol.DocumentURI(f.URI))
		if d == nil {
			e.logger.Warn("rule reported on unknown document",
				slog.String("rule", f.Rule), slog.String("uri", f.URI))
			continue
		}
		pos := syntax.Pos{Line: f.Line, Col: f.Col}
		d.Report(diag.Diagnostic{
			Severity: f.Severity,
			Range:    syntax.Range{Start: pos, End: pos},
			Message:  f.Message,
			Phase:    diag.PhaseRules,
			Code:     diag.CodeRule,
			Related:  []string{f.Rule},
		})
		n++
	}
	return n, err
}

// rulesHash hashes the rule sources in name order.
func (e *Engine) rulesHash() string {
	if e.rules == nil {
		return ""
	}
	names, err := e.rules.Rules()
	if err != nil {
		return ""
	}
	h := sha256.New()
	for _, name := range names {
		src, err := e.rules.LoadRule(name)
		if err != nil {
			continue
		}
		h.Write([]byte(name))
		h.Write([]byte(src))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// RulesChanged reports whether the rules differ from those that produced
// the stored index. It is true when no index or no recorded hash exists.
func (e *Engine) RulesChanged() bool {
	if e.store == nil {
		return true
	}
	stored, err := e.store.GetMetadata(rulesHashKey)
	if err != nil || stored == "" {
		return true
	}
	return stored != e.rulesHash()
}

// --- Loading ---

var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// IsSyntaxFile reports whether path carries one of the SyntaxExtensions.
func IsSyntaxFile(path string) bool {
	for _, ext := range SyntaxExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// LoadDirectory decodes every syntax file under root concurrently and opens
// them as documents. When root is inside a git repository, git ls-files is
// used so ignored files are skipped. Files that fail to decode are logged and
// skipped. The documents are not resolved as a package until the next pass.
func (e *Engine) LoadDirectory(ctx context.Context, root string) ([]protocol.DocumentURI, error) {
	paths, err := gitListFiles(root)
	if err != nil {
		paths, err = walkListFiles(root)
		if err != nil {
			return nil, err
		}
	}
	return e.LoadFiles(ctx, paths)
}

// LoadFiles decodes the given syntax files concurrently and opens them.
func (e *Engine) LoadFiles(ctx context.Context, paths []string) ([]protocol.DocumentURI, error) {
	files := make([]*syntax.File, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := syntax.DecodeFile(p)
			if err != nil {
				e.logger.Warn("skipping undecodable file", slog.String("path", p), slog.String("error", err.Error()))
				return nil
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("arbor: load: %w", err)
	}

	var uris []protocol.DocumentURI
	err := e.sched.Do(ctx, func(context.Context) error {
		for i, f := range files {
			if f == nil {
				continue
			}
			abs, err := filepath.Abs(paths[i])
			if err != nil {
				return err
			}
			u := uri.File(abs)
			e.pkg.Open(u, f)
			uris = append(uris, u)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("arbor: load: %w", err)
	}
	e.logger.Debug("loaded documents", slog.Int("count", len(uris)))
	return uris, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) syntax files under root.
func gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && IsSyntaxFile(line) {
			paths = append(paths, filepath.Join(root, line))
		}
	}
	return paths, nil
}

// walkListFiles is the fallback when git is unavailable. Hidden directories,
// node_modules and vendor are skipped.
func walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSyntaxFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("arbor: walk %s: %w", root, err)
	}
	return paths, nil
}
