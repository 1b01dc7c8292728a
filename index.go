package arbor

import (
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/jward/arbor/internal/script"
	"github.com/jward/arbor/internal/store"
	"github.com/jward/arbor/internal/symbols"
)

// indexed reports whether s belongs in the stored index and in the view
// given to rules. Function groups, arguments and locals are covered by
// their functions.
func indexed(s symbols.Symbol) bool {
	switch s.Kind() {
	case symbols.KindFunctionGroup, symbols.KindArgument, symbols.KindLocal:
		return false
	}
	return true
}

// indexParent returns the nearest indexed ancestor of s.
func indexParent(s symbols.Symbol) symbols.Symbol {
	p := s.Parent()
	for p != nil && !indexed(p) {
		p = p.Parent()
	}
	return p
}

func visibilityOf(s symbols.Symbol) string {
	switch x := s.(type) {
	case symbols.Type:
		return x.Visibility().String()
	case *symbols.Function:
		return x.Visibility().String()
	case *symbols.Variable:
		return x.Visibility().String()
	}
	return ""
}

func typeNameOf(s symbols.Symbol) string {
	var t symbols.Type
	switch x := s.(type) {
	case *symbols.Function:
		t = x.Returns()
	case symbols.Valued:
		t = x.Type()
	}
	if t == nil {
		return ""
	}
	return t.FullName()
}

func modifiersOf(s symbols.Symbol) []string {
	var mods []string
	switch x := s.(type) {
	case *symbols.Function:
		if x.Static() {
			mods = append(mods, "static")
		}
	case *symbols.Variable:
		if x.Static() {
			mods = append(mods, "static")
		}
		if x.ReadOnly() {
			mods = append(mods, "readonly")
		}
	}
	return mods
}

func signatureOf(s symbols.Symbol) string {
	if f, ok := s.(*symbols.Function); ok {
		return f.Signature().String()
	}
	return ""
}

// usagesOf returns the usages of s; a function group contributes the usages
// of each of its overloads.
func usagesOf(s symbols.Symbol) []symbols.Usage {
	out := append([]symbols.Usage(nil), s.Usages()...)
	if g, ok := s.(*symbols.FunctionGroup); ok {
		for _, f := range g.Functions() {
			out = append(out, f.Usages()...)
		}
	}
	return out
}

// snapshot converts the graph and the open documents into a store snapshot.
// It runs on the scheduler goroutine.
func (e *Engine) snapshot(res *PassResult) *store.Snapshot {
	snap := store.NewSnapshot(store.Pass{
		ID:          res.ID,
		Started:     res.Started,
		ElapsedMS:   res.Elapsed.Milliseconds(),
		Documents:   res.Documents,
		Rounds:      res.Rounds,
		Diagnostics: res.Diagnostics,
	})

	docIDs := make(map[protocol.DocumentURI]int64)
	for _, d := range e.pkg.Documents() {
		docIDs[d.URI()] = snap.AddDocument(&store.Document{URI: string(d.URI()), Revision: d.Revision()})
	}

	symIDs := make(map[symbols.Symbol]int64)
	var order []symbols.Symbol
	e.graph.Walk(func(s symbols.Symbol) bool {
		if !indexed(s) {
			return true
		}
		decl := s.Decl()
		row := &store.Symbol{
			Name:       s.Name(),
			FullName:   s.FullName(),
			Kind:       s.Kind().String(),
			Visibility: visibilityOf(s),
			Modifiers:  modifiersOf(s),
			TypeName:   typeNameOf(s),
			Signature:  signatureOf(s),
			StartLine:  decl.Name.Start.Line,
			StartCol:   decl.Name.Start.Col,
			EndLine:    decl.Name.End.Line,
			EndCol:     decl.Name.End.Col,
		}
		if id, ok := docIDs[decl.URI]; ok {
			row.DocumentID = &id
		}
		if p := indexParent(s); p != nil {
			if id, ok := symIDs[p]; ok {
				row.ParentSymbolID = &id
			}
		}
		symIDs[s] = snap.AddSymbol(row)
		order = append(order, s)
		return true
	})

	for _, s := range order {
		id := symIDs[s]
		for _, u := range s.Usages() {
			docID, ok := docIDs[u.URI]
			if !ok {
				continue
			}
			snap.AddUsage(&store.Usage{
				SymbolID:   id,
				DocumentID: docID,
				StartLine:  u.Range.Start.Line,
				StartCol:   u.Range.Start.Col,
				EndLine:    u.Range.End.Line,
				EndCol:     u.Range.End.Col,
			})
		}
		addImpl := func(super symbols.Type, kind string) {
			if superID, ok := symIDs[super]; ok {
				snap.AddImplementation(&store.Implementation{TypeSymbolID: id, SuperSymbolID: superID, Kind: kind})
			}
		}
		switch t := s.(type) {
		case *symbols.Class:
			if sc := t.Superclass(); sc != nil {
				addImpl(sc, "extends")
			}
			for _, i := range t.Interfaces() {
				addImpl(i, "implements")
			}
		case *symbols.Interface:
			for _, i := range t.Extends() {
				addImpl(i, "extends")
			}
		case *symbols.Enumeration:
			for _, st := range t.Supertypes() {
				addImpl(st, "extends")
			}
		}
	}

	for _, d := range e.pkg.Documents() {
		docID := docIDs[d.URI()]
		for _, x := range d.Diagnostics() {
			snap.AddDiagnostic(&store.Diagnostic{
				DocumentID: docID,
				Severity:   x.Severity.String(),
				Code:       string(x.Code),
				Phase:      x.Phase.String(),
				Message:    x.Message,
				Related:    x.Related,
				StartLine:  x.Range.Start.Line,
				StartCol:   x.Range.Start.Col,
				EndLine:    x.Range.End.Line,
				EndCol:     x.Range.End.Col,
			})
		}
	}
	return snap
}

// graphHost exposes the live graph to rules. It is only used on the
// scheduler goroutine.
type graphHost struct {
	e *Engine
}

func (h *graphHost) Symbols(kind string) ([]script.SymbolInfo, error) {
	var want symbols.Kind
	if kind != "" {
		k, ok := symbols.ParseKind(kind)
		if !ok {
			return nil, fmt.Errorf("unknown symbol kind %q", kind)
		}
		want = k
	}
	var out []script.SymbolInfo
	h.e.graph.Walk(func(s symbols.Symbol) bool {
		if !indexed(s) || (kind != "" && s.Kind() != want) {
			return true
		}
		decl := s.Decl()
		if decl.URI == "" {
			return true
		}
		out = append(out, script.SymbolInfo{
			Name:       s.Name(),
			FullName:   s.FullName(),
			Kind:       s.Kind().String(),
			Visibility: visibilityOf(s),
			Type:       typeNameOf(s),
			URI:        string(decl.URI),
			Line:       decl.Name.Start.Line,
			Col:        decl.Name.Start.Col,
		})
		return true
	})
	return out, nil
}

func (h *graphHost) Usages(fullName string) []script.Location {
	s := h.e.graph.Lookup(fullName)
	if s == nil {
		return nil
	}
	var out []script.Location
	for _, u := range usagesOf(s) {
		out = append(out, script.Location{URI: string(u.URI), Line: u.Range.Start.Line, Col: u.Range.Start.Col})
	}
	return out
}
