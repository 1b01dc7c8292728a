package arbor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/arbor/internal/syntax"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	e, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func decode(t *testing.T, src string) *syntax.File {
	t.Helper()
	f, err := syntax.Decode([]byte(src))
	require.NoError(t, err)
	return f
}

// writeTree writes files (relative path to content) under a new temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

const (
	shapeSrc = `
decls:
  - class: Shape
    members:
      - var: secret
        type: Int
        visibility: private
      - function: area
`
	circleSrc = `
decls:
  - class: Circle
    extends: Shape
    members:
      - function: area
      - function: draw
        body:
          - expr: {call: area}
`
)

func shapeTree(t *testing.T) string {
	t.Helper()
	return writeTree(t, map[string]string{
		"shape.arb.yaml":            shapeSrc,
		"sub/circle.arb.yaml":       circleSrc,
		"notes.txt":                 "not a syntax file",
		".hidden/ignored.arb.yaml":  shapeSrc,
		"node_modules/dep.arb.yaml": shapeSrc,
		"broken.arb.yaml":           "decls: [{class: }]",
	})
}

// =============================================================================
// Loading
// =============================================================================

func TestIsSyntaxFile(t *testing.T) {
	t.Parallel()
	assert.True(t, IsSyntaxFile("a/b.arb.yaml"))
	assert.True(t, IsSyntaxFile("b.arb.yml"))
	assert.True(t, IsSyntaxFile("b.arb.json"))
	assert.False(t, IsSyntaxFile("b.yaml"))
	assert.False(t, IsSyntaxFile("b.arb"))
}

func TestLoadDirectory_SkipsHiddenVendoredAndBroken(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	root := shapeTree(t)

	uris, err := e.LoadDirectory(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, uris, 2)

	docs, err := e.Documents(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, uris, docs)
	for _, u := range uris {
		assert.Contains(t, []string{"shape.arb.yaml", "circle.arb.yaml"}, filepath.Base(string(u)))
	}
}

func TestLoadFiles_CanceledContext(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	root := shapeTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.LoadFiles(ctx, []string{filepath.Join(root, "shape.arb.yaml")})
	require.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Package pass
// =============================================================================

func TestResolve_WritesIndex(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithDBPath(filepath.Join(t.TempDir(), "arbor.db")))
	_, err := e.LoadDirectory(context.Background(), shapeTree(t))
	require.NoError(t, err)

	res, err := e.Resolve(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 2, res.Documents)
	assert.Zero(t, res.Diagnostics)
	assert.Zero(t, res.Findings)
	require.NotNil(t, res.Diff)
	assert.Subset(t, res.Diff.Added, []string{"Shape", "Shape.area", "Shape.secret", "Circle", "Circle.area", "Circle.draw"})
	assert.Same(t, res, e.LastPass())

	s := e.Store()
	require.NotNil(t, s)
	pass, err := s.LatestPass()
	require.NoError(t, err)
	require.NotNil(t, pass)
	assert.Equal(t, res.ID, pass.ID)

	circles, err := s.SymbolsByFullName("Circle")
	require.NoError(t, err)
	require.Len(t, circles, 1)
	supers, err := s.Supertypes(circles[0].ID)
	require.NoError(t, err)
	require.Len(t, supers, 1)
	assert.Equal(t, "Shape", supers[0].FullName)

	children, err := s.SymbolChildren(circles[0].ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Circle.area", children[0].FullName)

	usages, err := s.UsagesOf(children[0].ID)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Contains(t, usages[0].URI, "circle.arb.yaml")

	// Nothing changed, so the second pass diffs empty.
	res, err = e.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Diff.Empty())
}

func TestResolve_WithoutStore(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	require.NoError(t, e.Open(context.Background(), "file:///b.arb", decode(t, shapeSrc)))

	res, err := e.Resolve(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Diff)
	assert.Nil(t, e.Store())
	assert.True(t, e.RulesChanged())
}

func TestResolve_CanceledContext(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Resolve(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDebounce_RunsPassAfterEdits(t *testing.T) {
	t.Parallel()
	passes := make(chan *PassResult, 4)
	e := newTestEngine(t,
		WithDebounce(20*time.Millisecond),
		WithPassHook(func(res *PassResult) { passes <- res }),
	)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, "file:///shape.arb", decode(t, shapeSrc)))
	require.NoError(t, e.Open(ctx, "file:///circle.arb", decode(t, circleSrc)))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case res := <-passes:
			// A pass may fire between the two opens.
			if res.Documents < 2 {
				continue
			}
			assert.Zero(t, res.Diagnostics)
			assert.Same(t, res, e.LastPass())
			return
		case <-timeout:
			t.Fatal("debounced pass did not run")
		}
	}
}

func TestDebounce_EditAfterResolveStillSchedulesPass(t *testing.T) {
	t.Parallel()
	passes := make(chan *PassResult, 8)
	e := newTestEngine(t,
		WithDebounce(20*time.Millisecond),
		WithPassHook(func(res *PassResult) { passes <- res }),
	)
	ctx := context.Background()
	u := protocol.DocumentURI("file:///shape.arb")
	require.NoError(t, e.Open(ctx, u, decode(t, shapeSrc)))
	_, err := e.Resolve(ctx)
	require.NoError(t, err)

	edited := time.Now()
	require.NoError(t, e.Update(ctx, u, decode(t, circleSrc)))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case res := <-passes:
			if res.Started.Before(edited) {
				continue
			}
			assert.Equal(t, 1, res.Documents)
			return
		case <-timeout:
			t.Fatal("no debounced pass after an edit that followed Resolve")
		}
	}
}

// =============================================================================
// Document lifecycle
// =============================================================================

func TestDocumentLifecycle(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithDBPath(filepath.Join(t.TempDir(), "arbor.db")))
	ctx := context.Background()
	u := protocol.DocumentURI("file:///b.arb")

	require.NoError(t, e.Open(ctx, u, decode(t, `
decls:
  - class: B
    members:
      - function: run
`)))
	require.NoError(t, e.WaitResolved(ctx, u))

	require.NoError(t, e.Update(ctx, u, decode(t, `
decls:
  - class: B
    members:
      - function: walk
`)))
	require.NoError(t, e.WaitResolved(ctx, u))
	_, err := e.Resolve(ctx)
	require.NoError(t, err)

	docs, err := e.Store().Documents()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(2), docs[0].Revision)
	walk, err := e.Store().SymbolsByFullName("B.walk")
	require.NoError(t, err)
	assert.Len(t, walk, 1)
	run, err := e.Store().SymbolsByFullName("B.run")
	require.NoError(t, err)
	assert.Empty(t, run)

	require.NoError(t, e.CloseDocument(ctx, u))
	open, err := e.Documents(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.ErrorIs(t, e.CloseDocument(ctx, u), ErrUnknownDocument)
	assert.ErrorIs(t, e.Update(ctx, u, &syntax.File{}), ErrUnknownDocument)
	assert.ErrorIs(t, e.WaitResolved(ctx, u), ErrUnknownDocument)
}

// =============================================================================
// Rules
// =============================================================================

const unusedRule = `
vars := symbols("variable")
for i := 0; i < len(vars); i++ {
    v := vars[i]
    if v["visibility"] == "private" && len(usages(v["full_name"])) == 0 {
        report({
            "uri": v["uri"],
            "line": v["line"],
            "col": v["col"],
            "message": "unused private member " + v["name"],
        })
    }
}
`

func TestRules_ReportDiagnostics(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "arbor.db")
	rules := fstest.MapFS{
		"unused.risor": &fstest.MapFile{Data: []byte(unusedRule)},
		"_lib.risor":   &fstest.MapFile{Data: []byte(`x := 1`)},
	}
	e := newTestEngine(t, WithDBPath(dbPath), WithRulesFS(rules))
	ctx := context.Background()
	u := protocol.DocumentURI("file:///shape.arb")
	require.NoError(t, e.Open(ctx, u, decode(t, shapeSrc)))

	assert.True(t, e.RulesChanged())
	res, err := e.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Findings)
	assert.Equal(t, 1, res.Diagnostics)
	assert.False(t, e.RulesChanged())

	diags, err := e.Query().Diagnostics(ctx, u)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "rule", diags[0].Code)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, diags[0].Severity)
	assert.Equal(t, "unused private member secret", diags[0].Message)

	stored, err := e.Store().DiagnosticsByDocument(string(u))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "rules", stored[0].Phase)
	assert.Equal(t, []string{"unused"}, stored[0].Related)

	// A rerun does not accumulate findings.
	_, err = e.Resolve(ctx)
	require.NoError(t, err)
	diags, err = e.Query().Diagnostics(ctx, u)
	require.NoError(t, err)
	assert.Len(t, diags, 1)
}

func TestRules_ChangedAfterEdit(t *testing.T) {
	t.Parallel()
	dbPath := filepath.Join(t.TempDir(), "arbor.db")
	first := newTestEngine(t, WithDBPath(dbPath), WithRulesFS(fstest.MapFS{
		"a.risor": &fstest.MapFile{Data: []byte(`x := 1`)},
	}))
	_, err := first.Resolve(context.Background())
	require.NoError(t, err)
	require.False(t, first.RulesChanged())
	require.NoError(t, first.Close())

	second := newTestEngine(t, WithDBPath(dbPath), WithRulesFS(fstest.MapFS{
		"a.risor": &fstest.MapFile{Data: []byte(`x := 2`)},
	}))
	assert.True(t, second.RulesChanged())
}

func TestRules_FailingRuleKeepsPass(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithRulesFS(fstest.MapFS{
		"broken.risor": &fstest.MapFile{Data: []byte(`usages(1)`)},
	}))
	require.NoError(t, e.Open(context.Background(), "file:///shape.arb", decode(t, shapeSrc)))

	res, err := e.Resolve(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Findings)
}

func TestRules_SymbolsRejectsUnknownKind(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Open(ctx, "file:///shape.arb", decode(t, shapeSrc)))

	h := &graphHost{e: e}
	var names []string
	var kindErr error
	require.NoError(t, e.sched.Do(ctx, func(context.Context) error {
		_, kindErr = h.Symbols("clas")
		classes, err := h.Symbols("class")
		for _, s := range classes {
			names = append(names, s.FullName)
		}
		return err
	}))
	assert.ErrorContains(t, kindErr, `unknown symbol kind "clas"`)
	assert.Equal(t, []string{"Shape"}, names)
}
