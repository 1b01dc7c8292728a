package arbor

import (
	"context"
	"fmt"
	"sort"

	"go.lsp.dev/protocol"

	"github.com/jward/arbor/internal/symbols"
	"github.com/jward/arbor/internal/syntax"
	"github.com/jward/arbor/internal/tree"
)

// QueryBuilder answers IDE queries against the live graph. Every query runs
// on the engine's scheduler, so results reflect a settled state between
// edits.
type QueryBuilder struct {
	e *Engine
}

// SymbolInfo describes a symbol to callers outside the engine.
type SymbolInfo struct {
	Name       string
	FullName   string
	Kind       string
	Visibility string
	// Type is the value type of a variable or the return type of a function.
	Type      string
	Signature string
	Builtin   bool
	// Location is the declared name; zero for built-ins and namespaces.
	Location protocol.Location
}

func infoOf(s symbols.Symbol) SymbolInfo {
	info := SymbolInfo{
		Name:       s.Name(),
		FullName:   s.FullName(),
		Kind:       s.Kind().String(),
		Visibility: visibilityOf(s),
		Type:       typeNameOf(s),
		Signature:  signatureOf(s),
	}
	if t, ok := s.(symbols.Type); ok {
		info.Builtin = t.Builtin()
	}
	if d := s.Decl(); d.URI != "" {
		info.Location = d.Location()
	}
	return info
}

func posOf(p protocol.Position) syntax.Pos {
	return syntax.Pos{Line: int(p.Line), Col: int(p.Character)}
}

func (q *QueryBuilder) do(ctx context.Context, fn func() error) error {
	return q.e.sched.Do(ctx, func(context.Context) error { return fn() })
}

// treeOf returns the resolved tree of an open document. It must run on the
// scheduler.
func (q *QueryBuilder) treeOf(u protocol.DocumentURI) (*tree.Tree, error) {
	d := q.e.pkg.Document(u)
	if d == nil {
		return nil, fmt.Errorf("%s: %w", u, ErrUnknownDocument)
	}
	return d.Tree(), nil
}

// symbolAt must run on the scheduler.
func (q *QueryBuilder) symbolAt(u protocol.DocumentURI, pos protocol.Position) (symbols.Symbol, error) {
	t, err := q.treeOf(u)
	if err != nil || t == nil {
		return nil, err
	}
	return t.SymbolAt(posOf(pos)), nil
}

// SymbolAt returns the symbol declared or referenced at pos, or nil.
func (q *QueryBuilder) SymbolAt(ctx context.Context, u protocol.DocumentURI, pos protocol.Position) (*SymbolInfo, error) {
	var out *SymbolInfo
	err := q.do(ctx, func() error {
		s, err := q.symbolAt(u, pos)
		if err != nil {
			return err
		}
		if s != nil {
			info := infoOf(s)
			out = &info
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("symbol at: %w", err)
	}
	return out, nil
}

// TypeAt returns the value type of the expression or variable at pos, for
// hover. It is nil when nothing typed is there or the type is unresolved.
func (q *QueryBuilder) TypeAt(ctx context.Context, u protocol.DocumentURI, pos protocol.Position) (*SymbolInfo, error) {
	var out *SymbolInfo
	err := q.do(ctx, func() error {
		t, err := q.treeOf(u)
		if err != nil || t == nil {
			return err
		}
		if typ := t.TypeAt(posOf(pos)); typ != nil {
			info := infoOf(typ)
			out = &info
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("type at: %w", err)
	}
	return out, nil
}

// DefinitionAt finds where the symbol at pos is declared. A function group
// yields every overload.
func (q *QueryBuilder) DefinitionAt(ctx context.Context, u protocol.DocumentURI, pos protocol.Position) ([]protocol.Location, error) {
	var locs []protocol.Location
	err := q.do(ctx, func() error {
		s, err := q.symbolAt(u, pos)
		if err != nil || s == nil {
			return err
		}
		targets := []symbols.Symbol{s}
		if g, ok := s.(*symbols.FunctionGroup); ok {
			targets = targets[:0]
			for _, f := range g.Functions() {
				targets = append(targets, f)
			}
		}
		for _, t := range targets {
			if d := t.Decl(); d.URI != "" {
				locs = append(locs, d.Location())
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}
	return locs, nil
}

// ReferencesTo returns every usage of the symbol at pos, ordered by document
// and position.
func (q *QueryBuilder) ReferencesTo(ctx context.Context, u protocol.DocumentURI, pos protocol.Position) ([]protocol.Location, error) {
	var usages []symbols.Usage
	err := q.do(ctx, func() error {
		s, err := q.symbolAt(u, pos)
		if err != nil || s == nil {
			return err
		}
		usages = usagesOf(s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	sort.SliceStable(usages, func(i, j int) bool {
		a, b := usages[i], usages[j]
		if a.URI != b.URI {
			return a.URI < b.URI
		}
		return a.Range.Start.Before(b.Range.Start)
	})
	locs := make([]protocol.Location, len(usages))
	for i, us := range usages {
		locs[i] = us.Location()
	}
	return locs, nil
}

// Complete returns the symbols visible at pos whose name fuzzily matches
// prefix, in search priority order. Each overload is a separate entry.
func (q *QueryBuilder) Complete(ctx context.Context, u protocol.DocumentURI, pos protocol.Position, prefix string) ([]SymbolInfo, error) {
	var out []SymbolInfo
	err := q.do(ctx, func() error {
		t, err := q.treeOf(u)
		if err != nil || t == nil {
			return err
		}
		query := &symbols.Query{Name: prefix, Fuzzy: true, IgnoreConstructors: true}
		t.SearchAt(posOf(pos), query)
		for _, s := range query.Results {
			out = append(out, infoOf(s))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	return out, nil
}

// ResolveType resolves a fully-qualified type name.
func (q *QueryBuilder) ResolveType(ctx context.Context, fullName string) (*SymbolInfo, error) {
	var out *SymbolInfo
	err := q.do(ctx, func() error {
		t, err := q.e.graph.ResolveType(fullName)
		if err != nil {
			return err
		}
		info := infoOf(t)
		out = &info
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve type: %w", err)
	}
	return out, nil
}

// ResolveNamespace returns the namespace at the dotted path, or nil.
func (q *QueryBuilder) ResolveNamespace(ctx context.Context, path string) (*SymbolInfo, error) {
	var out *SymbolInfo
	err := q.do(ctx, func() error {
		if ns := q.e.graph.ResolveNamespace(path); ns != nil {
			info := infoOf(ns)
			out = &info
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve namespace: %w", err)
	}
	return out, nil
}

// Diagnostics returns the current diagnostics of a document in LSP form.
func (q *QueryBuilder) Diagnostics(ctx context.Context, u protocol.DocumentURI) ([]protocol.Diagnostic, error) {
	var out []protocol.Diagnostic
	err := q.do(ctx, func() error {
		d := q.e.pkg.Document(u)
		if d == nil {
			return fmt.Errorf("%s: %w", u, ErrUnknownDocument)
		}
		for _, x := range d.Diagnostics() {
			out = append(out, x.Protocol())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("diagnostics: %w", err)
	}
	return out, nil
}

// Implementations returns the types that derive from the named type,
// directly or transitively, ordered by full name.
func (q *QueryBuilder) Implementations(ctx context.Context, fullName string) ([]SymbolInfo, error) {
	var out []SymbolInfo
	err := q.do(ctx, func() error {
		target, err := q.e.graph.ResolveType(fullName)
		if err != nil {
			return err
		}
		q.e.graph.Walk(func(s symbols.Symbol) bool {
			if t, ok := s.(symbols.Type); ok && t != target && symbols.IsSubtype(t, target) {
				out = append(out, infoOf(t))
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("implementations: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

// Castable reports whether a value of type from converts to type to.
func (q *QueryBuilder) Castable(ctx context.Context, from, to string) (bool, error) {
	var ok bool
	err := q.do(ctx, func() error {
		ft, err := q.e.graph.ResolveType(from)
		if err != nil {
			return err
		}
		tt, err := q.e.graph.ResolveType(to)
		if err != nil {
			return err
		}
		ok = symbols.Castable(ft, tt)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("castable: %w", err)
	}
	return ok, nil
}

// Matches grades call-site argument types against declared parameter types.
// An empty name or "?" is an unknown type.
func (q *QueryBuilder) Matches(ctx context.Context, args, params []string) (Match, error) {
	var m Match
	err := q.do(ctx, func() error {
		a, err := q.signature(args)
		if err != nil {
			return err
		}
		p, err := q.signature(params)
		if err != nil {
			return err
		}
		m = symbols.Matches(a, p)
		return nil
	})
	if err != nil {
		return MatchNo, fmt.Errorf("matches: %w", err)
	}
	return m, nil
}

func (q *QueryBuilder) signature(names []string) (symbols.Signature, error) {
	types := make([]symbols.Type, len(names))
	for i, n := range names {
		if n == "" || n == "?" {
			continue
		}
		t, err := q.e.graph.ResolveType(n)
		if err != nil {
			return nil, err
		}
		types[i] = t
	}
	return symbols.SignatureOf(types...), nil
}
