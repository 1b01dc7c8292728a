package arbor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

// openResolved opens each source under file:///<name>.arb and runs a
// package pass.
func openResolved(t *testing.T, e *Engine, docs map[string]string) {
	t.Helper()
	ctx := context.Background()
	for name, src := range docs {
		require.NoError(t, e.Open(ctx, protocol.DocumentURI("file:///"+name+".arb"), decode(t, src)))
	}
	_, err := e.Resolve(ctx)
	require.NoError(t, err)
}

const shadowURI = protocol.DocumentURI("file:///shadow.arb")

const shadowSrc = `
decls:
  - class: A
    members:
      - function: run
        body:
          - expr: {call: run}
  - class: B
    extends: A
    members:
      - function: run
        body:
          - expr: {call: run}
`

func newShadowEngine(t *testing.T) *Engine {
	t.Helper()
	e := newTestEngine(t)
	openResolved(t, e, map[string]string{"shadow": shadowSrc})
	return e
}

func pos(line, col uint32) protocol.Position {
	return protocol.Position{Line: line, Character: col}
}

// =============================================================================
// Position queries
// =============================================================================

func TestSymbolAt(t *testing.T) {
	t.Parallel()
	e := newShadowEngine(t)
	q := e.Query()
	ctx := context.Background()

	// Line 2 is "  - class: A".
	a, err := q.SymbolAt(ctx, shadowURI, pos(2, 11))
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "A", a.FullName)
	assert.Equal(t, "class", a.Kind)
	assert.Equal(t, shadowURI, a.Location.URI)
	assert.Equal(t, pos(2, 11), a.Location.Range.Start)

	// Line 6 is "          - expr: {call: run}".
	run, err := q.SymbolAt(ctx, shadowURI, pos(6, 25))
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "A.run", run.FullName)
	assert.Equal(t, "function", run.Kind)
	assert.Equal(t, "()", run.Signature)

	none, err := q.SymbolAt(ctx, shadowURI, pos(100, 0))
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = q.SymbolAt(ctx, "file:///missing.arb", pos(0, 0))
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestTypeAt(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	openResolved(t, e, map[string]string{"typed": `
decls:
  - class: P
    members:
      - var: n
        type: Int
      - function: f
        body:
          - local: m
            init: n
`})
	q := e.Query()
	ctx := context.Background()
	u := protocol.DocumentURI("file:///typed.arb")

	// Line 8 is "            init: n".
	ref, err := q.TypeAt(ctx, u, pos(8, 18))
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "Int", ref.FullName)
	assert.True(t, ref.Builtin)

	// Line 3 is "      - var: n".
	decl, err := q.TypeAt(ctx, u, pos(3, 13))
	require.NoError(t, err)
	require.NotNil(t, decl)
	assert.Equal(t, "Int", decl.FullName)

	none, err := q.TypeAt(ctx, u, pos(100, 0))
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = q.TypeAt(ctx, "file:///missing.arb", pos(0, 0))
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

func TestDefinitionAt(t *testing.T) {
	t.Parallel()
	e := newShadowEngine(t)

	// Line 8 is "    extends: A".
	locs, err := e.Query().DefinitionAt(context.Background(), shadowURI, pos(8, 13))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, shadowURI, locs[0].URI)
	assert.Equal(t, pos(2, 11), locs[0].Range.Start)

	locs, err = e.Query().DefinitionAt(context.Background(), shadowURI, pos(100, 0))
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestReferencesTo(t *testing.T) {
	t.Parallel()
	e := newShadowEngine(t)

	locs, err := e.Query().ReferencesTo(context.Background(), shadowURI, pos(6, 25))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, pos(6, 25), locs[0].Range.Start)

	// The call in B.run binds to B.run.
	locs, err = e.Query().ReferencesTo(context.Background(), shadowURI, pos(12, 25))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, pos(12, 25), locs[0].Range.Start)
}

func TestComplete(t *testing.T) {
	t.Parallel()
	e := newShadowEngine(t)

	items, err := e.Query().Complete(context.Background(), shadowURI, pos(12, 25), "ru")
	require.NoError(t, err)
	var names []string
	for _, it := range items {
		names = append(names, it.FullName)
	}
	require.NotEmpty(t, names)
	assert.Equal(t, "B.run", names[0])
	assert.Contains(t, names, "A.run")
}

// =============================================================================
// Name queries
// =============================================================================

func TestResolveType(t *testing.T) {
	t.Parallel()
	e := newShadowEngine(t)
	ctx := context.Background()

	b, err := e.Query().ResolveType(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "class", b.Kind)
	assert.False(t, b.Builtin)

	i, err := e.Query().ResolveType(ctx, "Int")
	require.NoError(t, err)
	assert.True(t, i.Builtin)
	assert.Empty(t, i.Location.URI)

	_, err = e.Query().ResolveType(ctx, "Nope")
	assert.Error(t, err)
}

func TestResolveNamespace(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	openResolved(t, e, map[string]string{"geo": `
namespace: geo
decls:
  - class: Shape
`})
	ctx := context.Background()

	ns, err := e.Query().ResolveNamespace(ctx, "geo")
	require.NoError(t, err)
	require.NotNil(t, ns)
	assert.Equal(t, "namespace", ns.Kind)

	shape, err := e.Query().ResolveType(ctx, "geo.Shape")
	require.NoError(t, err)
	assert.Equal(t, "Shape", shape.Name)

	missing, err := e.Query().ResolveNamespace(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDiagnostics_AmbiguousOverloadCarriesCandidates(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	openResolved(t, e, map[string]string{"c": `
decls:
  - class: C
    members:
      - function: f
        params:
          - {name: a, type: Object}
          - {name: b, type: Int}
      - function: f
        params:
          - {name: a, type: Int}
          - {name: b, type: Object}
      - function: test
        body:
          - expr: {call: f, args: [1, 2]}
`})

	diags, err := e.Query().Diagnostics(context.Background(), "file:///c.arb")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "ambiguous-overload", diags[0].Code)
	assert.Equal(t, protocol.DiagnosticSeverityError, diags[0].Severity)
	assert.Equal(t, "arbor", diags[0].Source)
	candidates, ok := diags[0].Data.([]string)
	require.True(t, ok)
	assert.Len(t, candidates, 2)

	_, err = e.Query().Diagnostics(context.Background(), "file:///missing.arb")
	assert.ErrorIs(t, err, ErrUnknownDocument)
}

// =============================================================================
// Type queries
// =============================================================================

func TestImplementations_Transitive(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	openResolved(t, e, map[string]string{"h": `
decls:
  - interface: Drawable
  - class: Base
    implements: [Drawable]
  - class: Mid
    extends: Base
  - class: Leaf
    extends: Mid
`})
	ctx := context.Background()

	subs, err := e.Query().Implementations(ctx, "Base")
	require.NoError(t, err)
	var names []string
	for _, s := range subs {
		names = append(names, s.FullName)
	}
	assert.Equal(t, []string{"Leaf", "Mid"}, names)

	subs, err = e.Query().Implementations(ctx, "Drawable")
	require.NoError(t, err)
	assert.Len(t, subs, 3)

	_, err = e.Query().Implementations(ctx, "Nope")
	assert.Error(t, err)
}

func TestCastable(t *testing.T) {
	t.Parallel()
	e := newShadowEngine(t)
	ctx := context.Background()

	ok, err := e.Query().Castable(ctx, "Int", "Object")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Query().Castable(ctx, "B", "A")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Query().Castable(ctx, "A", "B")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.Query().Castable(ctx, "Int", "Nope")
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	t.Parallel()
	e := newShadowEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		args   []string
		params []string
		want   Match
	}{
		{"identical", []string{"Int", "B"}, []string{"Int", "B"}, MatchFull},
		{"castable", []string{"Int", "B"}, []string{"Object", "A"}, MatchPartial},
		{"unknown argument", []string{"?", "B"}, []string{"Int", "A"}, MatchWildcard},
		{"incompatible", []string{"A"}, []string{"B"}, MatchNo},
		{"arity", []string{"Int"}, []string{"Int", "Int"}, MatchNo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Query().Matches(ctx, tt.args, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := e.Query().Matches(ctx, []string{"Nope"}, []string{"Int"})
	assert.Error(t, err)
}
