package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/jward/arbor"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

// Not parallel: resolveDBPath reads the --db flag.
func TestResolveDBPath(t *testing.T) {
	old := flagDB
	t.Cleanup(func() { flagDB = old })

	flagDB = ""
	assert.Equal(t, filepath.Join("/repo", ".arbor", "index.db"), resolveDBPath("/repo", ""))
	assert.Equal(t, "/cfg/x.db", resolveDBPath("/repo", "/cfg/x.db"))

	flagDB = "out/x.db"
	assert.Equal(t, filepath.Join("/repo", "out", "x.db"), resolveDBPath("/repo", "/cfg/x.db"))
	flagDB = "/abs/x.db"
	assert.Equal(t, "/abs/x.db", resolveDBPath("/repo", ""))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("xml"), "json or text")
}

// =============================================================================
// Text output
// =============================================================================

func TestOutputResultText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		result any
		want   []string
	}{
		{"locations", []CLILocation{{File: "file:///a.arb", StartLine: 3, StartCol: 4}}, []string{"file:///a.arb:3:4"}},
		{"symbols", []CLISymbol{{ID: 7, FullName: "geo.Shape", Kind: "class", Visibility: "public"}}, []string{"ID", "geo.Shape", "class"}},
		{"diagnostics", []CLIDiagnostic{{File: "file:///a.arb", Severity: "error", Code: "ambiguous-overload", Message: "ambiguous call", Related: []string{"C.f(Int a)", "C.f(Object a)"}}},
			[]string{"file:///a.arb:0:0: error [ambiguous-overload]: ambiguous call", "candidates: C.f(Int a), C.f(Object a)"}},
		{"documents", []CLIDocument{{URI: "file:///a.arb", Revision: 2}}, []string{"URI", "file:///a.arb"}},
		{"pass", CLIPass{ID: "p1", Documents: 3}, []string{"Pass: p1", "Documents: 3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			require.NoError(t, outputResultText(&buf, CLIResult{Results: tt.result}))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}

	var buf bytes.Buffer
	assert.NoError(t, outputResultText(&buf, CLIResult{}))
	assert.Empty(t, buf.String())
	assert.Error(t, outputResultText(&buf, CLIResult{Results: 42}))
}

func TestProtocolToCLI(t *testing.T) {
	t.Parallel()
	d := protocolToCLI("file:///a.arb", protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: 1, Character: 2},
			End:   protocol.Position{Line: 1, Character: 5},
		},
		Severity: protocol.DiagnosticSeverityHint,
		Code:     "auto-cast",
		Message:  "implicit conversion",
		Data:     []string{"Object"},
	})
	assert.Equal(t, CLIDiagnostic{
		File: "file:///a.arb", Severity: "hint", Code: "auto-cast", Message: "implicit conversion",
		Related: []string{"Object"}, StartLine: 1, StartCol: 2, EndLine: 1, EndCol: 5,
	}, d)
	assert.Equal(t, 1, countErrors([]CLIDiagnostic{d, {Severity: "error"}}))
}

// =============================================================================
// Watcher
// =============================================================================

func newTestWatcher(t *testing.T) (*sourceWatcher, *arbor.Engine) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := arbor.New(arbor.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	w, err := newWatcher(e, logger)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, e
}

func TestWatcher_FeedsChangesAsEdits(t *testing.T) {
	t.Parallel()
	w, e := newTestWatcher(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "b.arb.yaml")

	require.NoError(t, os.WriteFile(path, []byte("decls:\n  - class: B\n"), 0o644))
	require.NoError(t, w.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create}))
	docs, err := e.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NoError(t, os.WriteFile(path, []byte("decls:\n  - class: C\n"), 0o644))
	require.NoError(t, w.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write}))
	c, err := e.Query().ResolveType(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, "class", c.Kind)

	// A half-written file is ignored.
	require.NoError(t, os.WriteFile(path, []byte("decls: [{class: "), 0o644))
	require.NoError(t, w.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write}))

	require.NoError(t, os.Remove(path))
	require.NoError(t, w.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Remove}))
	docs, err = e.Documents(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	// Removing an unknown document is not an error.
	require.NoError(t, w.handle(ctx, fsnotify.Event{Name: path, Op: fsnotify.Remove}))
	// Non-syntax files are ignored.
	require.NoError(t, w.handle(ctx, fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write}))
}

func TestWatcher_AddTreeSkipsHidden(t *testing.T) {
	t.Parallel()
	w, _ := newTestWatcher(t)
	root := t.TempDir()
	for _, d := range []string{"src/geo", ".git/objects", "node_modules/x"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}

	require.NoError(t, w.AddTree(root))
	assert.ElementsMatch(t, []string{root, filepath.Join(root, "src"), filepath.Join(root, "src", "geo")}, w.fsw.WatchList())
}
