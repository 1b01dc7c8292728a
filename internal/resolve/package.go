package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.lsp.dev/protocol"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/metrics"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
)

const tracerName = "arbor/resolve"

// Package holds the open documents that share one symbol graph and runs the
// resolution phases over them. A Package is not safe for concurrent use; the
// engine confines it to its Scheduler.
type Package struct {
	g         *symbols.Graph
	docs      map[protocol.DocumentURI]*Document
	logger    *slog.Logger
	tracer    trace.Tracer
	maxRounds int
}

// Option configures a Package.
type Option func(*Package)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Package) {
		p.logger = l
	}
}

// WithMaxRounds caps the inheritance fixpoint. Zero, the default, leaves the
// loop bounded only by lack of progress.
func WithMaxRounds(n int) Option {
	return func(p *Package) {
		p.maxRounds = n
	}
}

// NewPackage returns an empty package over g.
func NewPackage(g *symbols.Graph, opts ...Option) *Package {
	p := &Package{
		g:      g,
		docs:   make(map[protocol.DocumentURI]*Document),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Graph returns the package's symbol graph.
func (p *Package) Graph() *symbols.Graph { return p.g }

// Document returns the open document at uri, or nil.
func (p *Package) Document(uri protocol.DocumentURI) *Document { return p.docs[uri] }

// Documents returns the open documents ordered by URI.
func (p *Package) Documents() []*Document {
	out := make([]*Document, 0, len(p.docs))
	for _, d := range p.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].uri < out[j].uri })
	return out
}

// Open adds a document. Opening a URI that is already open replaces its
// syntax tree like Update. The document is not resolved until the next call
// to ResolveDocument or Resolve.
func (p *Package) Open(uri protocol.DocumentURI, f *syntax.File) *Document {
	if d, ok := p.docs[uri]; ok {
		d.file = f
		d.revision++
		return d
	}
	d := newDocument(uri, f)
	p.docs[uri] = d
	metrics.SetDocuments(len(p.docs))
	return d
}

// Update replaces the syntax tree of an open document and bumps its revision.
func (p *Package) Update(uri protocol.DocumentURI, f *syntax.File) (*Document, error) {
	d, ok := p.docs[uri]
	if !ok {
		return nil, fmt.Errorf("resolve: update %s: %w", uri, ErrUnknownDocument)
	}
	d.file = f
	d.revision++
	return d, nil
}

// Close disposes the document's tree, releasing its symbols and usages, and
// wakes its waiters.
func (p *Package) Close(uri protocol.DocumentURI) error {
	d, ok := p.docs[uri]
	if !ok {
		return fmt.Errorf("resolve: close %s: %w", uri, ErrUnknownDocument)
	}
	d.close()
	delete(p.docs, uri)
	metrics.SetDocuments(len(p.docs))
	return nil
}

// Pass describes one run of the pipeline.
type Pass struct {
	ID          uuid.UUID
	Started     time.Time
	Elapsed     time.Duration
	Documents   int
	Rounds      int
	Diagnostics int
}

// ResolveDocument rebuilds one document's tree and runs the four phases on it
// alone. References held by other documents are refreshed by the next full
// pass.
func (p *Package) ResolveDocument(ctx context.Context, uri protocol.DocumentURI) (*Pass, error) {
	d, ok := p.docs[uri]
	if !ok {
		return nil, fmt.Errorf("resolve: document %s: %w", uri, ErrUnknownDocument)
	}
	d.dispose()
	d.build(p.g)
	return p.pipeline(ctx, "document", []*Document{d})
}

// Resolve rebuilds every document and runs the package pipeline: classes
// for all documents, the inheritance fixpoint, then members and statements.
func (p *Package) Resolve(ctx context.Context) (*Pass, error) {
	docs := p.Documents()
	for _, d := range docs {
		d.dispose()
	}
	for _, d := range docs {
		d.build(p.g)
	}
	return p.pipeline(ctx, "package", docs)
}

func (p *Package) pipeline(ctx context.Context, scope string, docs []*Document) (*Pass, error) {
	pass := &Pass{ID: uuid.New(), Started: time.Now(), Documents: len(docs)}
	ctx, span := p.tracer.Start(ctx, "resolve.Package.pipeline", trace.WithAttributes(
		attribute.String("pass_id", pass.ID.String()),
		attribute.String("scope", scope),
		attribute.Int("documents", len(docs)),
	))
	defer span.End()

	err := p.phase(ctx, diag.PhaseClasses, docs, func(d *Document) {
		d.tree.ResolveClasses(d.diags)
	})
	if err == nil {
		err = p.fixpoint(ctx, docs, pass)
	}
	if err == nil {
		err = p.phase(ctx, diag.PhaseMembers, docs, func(d *Document) {
			d.tree.ResolveMembers(d.diags)
		})
	}
	if err == nil {
		err = p.phase(ctx, diag.PhaseStatements, docs, func(d *Document) {
			d.tree.ResolveStatements(d.diags)
		})
	}
	pass.Elapsed = time.Since(pass.Started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordPass("error", pass.Rounds)
		return pass, fmt.Errorf("resolve: %s pass: %w", scope, err)
	}

	for _, d := range docs {
		for _, x := range d.diags.All() {
			metrics.RecordDiagnostic(x.Phase.String(), x.Severity.String())
			pass.Diagnostics++
		}
	}
	metrics.RecordPass("ok", pass.Rounds)
	span.SetAttributes(attribute.Int("rounds", pass.Rounds), attribute.Int("diagnostics", pass.Diagnostics))
	p.logger.Info("resolve pass",
		slog.String("pass", pass.ID.String()),
		slog.String("scope", scope),
		slog.Int("documents", pass.Documents),
		slog.Int("rounds", pass.Rounds),
		slog.Int("diagnostics", pass.Diagnostics),
		slog.Duration("elapsed", pass.Elapsed))
	return pass, nil
}

// phase runs fn over docs and marks the phase resolved on each.
func (p *Package) phase(ctx context.Context, phase diag.Phase, docs []*Document, fn func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := p.tracer.Start(ctx, "resolve.phase."+phase.String())
	defer span.End()
	start := time.Now()
	for _, d := range docs {
		p.run(d, phase, func() { fn(d) })
		d.markResolved(phase)
	}
	metrics.ObservePhase(phase.String(), time.Since(start))
	return nil
}

// fixpoint repeats the inheritance phase over the documents that still need
// another turn until a round resolves nothing new, then runs the reporting
// round.
func (p *Package) fixpoint(ctx context.Context, docs []*Document, pass *Pass) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := p.tracer.Start(ctx, "resolve.phase.inheritance")
	defer span.End()
	start := time.Now()

	last := -1
	for {
		pass.Rounds++
		pending := 0
		for _, d := range docs {
			if !d.needsAnotherTurn {
				continue
			}
			n := 0
			p.run(d, diag.PhaseInheritance, func() { n = d.tree.ResolveInheritance(d.diags, false) })
			d.needsAnotherTurn = n > 0
			pending += n
		}
		p.logger.Debug("inheritance round",
			slog.Int("round", pass.Rounds),
			slog.Int("pending", pending))
		if pending == 0 {
			break
		}
		if last >= 0 && pending >= last {
			p.logger.Debug("inheritance fixpoint stalled", slog.Int("pending", pending))
			break
		}
		if p.maxRounds > 0 && pass.Rounds >= p.maxRounds {
			p.logger.Warn("inheritance fixpoint hit round cap",
				slog.Int("rounds", pass.Rounds),
				slog.Int("pending", pending))
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		last = pending
	}

	for _, d := range docs {
		p.run(d, diag.PhaseInheritance, func() { d.tree.ResolveInheritance(d.diags, true) })
		d.needsAnotherTurn = false
		d.markResolved(diag.PhaseInheritance)
	}
	span.SetAttributes(attribute.Int("rounds", pass.Rounds))
	metrics.ObservePhase(diag.PhaseInheritance.String(), time.Since(start))
	return nil
}

// run calls fn, recovering an internal invariant violation. A recovered
// document phase leaves whatever it had resolved so far and the pass goes on.
func (p *Package) run(d *Document, phase diag.Phase, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordPanic(phase.String())
			p.logger.Error("resolution phase aborted",
				slog.String("uri", string(d.uri)),
				slog.String("phase", phase.String()),
				slog.Any("panic", r))
		}
	}()
	fn()
}
