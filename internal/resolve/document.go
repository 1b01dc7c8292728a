// Package resolve drives the resolution phases over the documents of a
// package: per-document phase flags with notifications, the inheritance
// fixpoint across documents, the edit debouncer and the scheduler that owns
// every graph mutation.
package resolve

import (
	"context"
	"errors"
	"sync"

	"go.lsp.dev/protocol"

	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
	"github.com/jward/arbor/internal/tree"
)

// ErrUnknownDocument is returned for a URI that is not open.
var ErrUnknownDocument = errors.New("resolve: unknown document")

// numPhases is the number of tree phases tracked per document. Rule
// diagnostics are not tracked.
const numPhases = int(diag.PhaseStatements) + 1

// Document is one open source file. Apart from Wait and Resolved, a Document
// is only used from the goroutine that owns the package.
type Document struct {
	uri      protocol.DocumentURI
	file     *syntax.File
	revision int64
	tree     *tree.Tree
	diags    *diag.Collector

	needsAnotherTurn bool

	mu       sync.Mutex
	resolved [numPhases]bool
	done     [numPhases]chan struct{}
	gone     chan struct{}
}

func newDocument(uri protocol.DocumentURI, f *syntax.File) *Document {
	d := &Document{uri: uri, file: f, revision: 1, diags: &diag.Collector{}, gone: make(chan struct{})}
	for i := range d.done {
		d.done[i] = make(chan struct{})
	}
	return d
}

func (d *Document) URI() protocol.DocumentURI { return d.uri }
func (d *Document) File() *syntax.File         { return d.file }
func (d *Document) Revision() int64            { return d.revision }

// Tree returns the current context tree, or nil before the first pass.
func (d *Document) Tree() *tree.Tree { return d.tree }

// NeedsAnotherTurn reports whether the last inheritance round left
// supertype references unresolved.
func (d *Document) NeedsAnotherTurn() bool { return d.needsAnotherTurn }

// Diagnostics returns the document's diagnostics in source order.
func (d *Document) Diagnostics() []diag.Diagnostic { return d.diags.All() }

// Report adds a diagnostic produced outside the tree phases, such as a rule
// finding. It is dropped at the next rebuild.
func (d *Document) Report(x diag.Diagnostic) { d.diags.Add(x) }

// Resolved reports whether phase has completed for the current revision.
func (d *Document) Resolved(phase diag.Phase) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(phase) < numPhases && d.resolved[phase]
}

// Wait blocks until phase has completed for the current revision, the
// document is closed, or ctx is done.
func (d *Document) Wait(ctx context.Context, phase diag.Phase) error {
	if int(phase) >= numPhases {
		return nil
	}
	d.mu.Lock()
	ch := d.done[phase]
	d.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-d.gone:
		return ErrUnknownDocument
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Document) markResolved(phase diag.Phase) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.resolved[phase] {
		d.resolved[phase] = true
		close(d.done[phase])
	}
}

// resetFlags clears the phase flags. Channels that were never closed are
// kept so that existing waiters are woken by the next completion.
func (d *Document) resetFlags() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.done {
		if d.resolved[i] {
			d.resolved[i] = false
			d.done[i] = make(chan struct{})
		}
	}
}

func (d *Document) dispose() {
	if d.tree != nil {
		d.tree.Dispose()
		d.tree = nil
	}
}

// build replaces the context tree with a fresh one over the current file.
func (d *Document) build(g *symbols.Graph) {
	d.tree = tree.Build(g, d.uri, d.file)
	d.diags = &diag.Collector{}
	d.needsAnotherTurn = true
	d.resetFlags()
}

func (d *Document) close() {
	d.dispose()
	close(d.gone)
}
