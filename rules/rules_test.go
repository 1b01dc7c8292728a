package rules

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/internal/diag"
	"github.com/jward/arbor/internal/script"
)

type fakeHost struct {
	syms   []script.SymbolInfo
	usages map[string][]script.Location
}

func (h *fakeHost) Symbols(kind string) ([]script.SymbolInfo, error) {
	var out []script.SymbolInfo
	for _, s := range h.syms {
		if kind == "" || s.Kind == kind {
			out = append(out, s)
		}
	}
	return out, nil
}

func (h *fakeHost) Usages(fullName string) []script.Location {
	return h.usages[fullName]
}

func newTestRuntime(t *testing.T) *script.Runtime {
	t.Helper()
	return script.NewRuntime("", script.WithFS(FS), script.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestEmbeddedRules_Listed(t *testing.T) {
	t.Parallel()
	names, err := newTestRuntime(t).Rules()
	require.NoError(t, err)
	assert.Equal(t, []string{"empty_interface.risor", "unused_private.risor"}, names)
}

func TestEmbeddedRules_Findings(t *testing.T) {
	t.Parallel()
	host := &fakeHost{
		syms: []script.SymbolInfo{
			{Name: "Drawable", FullName: "Drawable", Kind: "interface", Visibility: "public", URI: "file:///a.arb", Line: 1, Col: 15},
			{Name: "Sized", FullName: "Sized", Kind: "interface", Visibility: "public", URI: "file:///a.arb", Line: 2, Col: 15},
			{Name: "size", FullName: "Sized.size", Kind: "function", Visibility: "public", URI: "file:///a.arb", Line: 4, Col: 18},
			{Name: "Box", FullName: "Box", Kind: "class", Visibility: "public", URI: "file:///a.arb", Line: 5, Col: 11},
			{Name: "w", FullName: "Box.w", Kind: "variable", Visibility: "private", URI: "file:///a.arb", Line: 7, Col: 13},
			{Name: "h", FullName: "Box.h", Kind: "variable", Visibility: "private", URI: "file:///a.arb", Line: 8, Col: 13},
			{Name: "grow", FullName: "Box.grow", Kind: "function", Visibility: "private", URI: "file:///a.arb", Line: 9, Col: 18},
		},
		usages: map[string][]script.Location{
			"Box.h": {{URI: "file:///a.arb", Line: 12, Col: 20}},
		},
	}

	findings, err := newTestRuntime(t).Run(context.Background(), host)
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, script.Finding{
		Rule: "empty_interface", URI: "file:///a.arb", Line: 1, Col: 15,
		Message: "interface Drawable declares no members", Severity: diag.Hint,
	}, findings[0])
	assert.Equal(t, "unused private variable w", findings[1].Message)
	assert.Equal(t, diag.Warning, findings[1].Severity)
	assert.Equal(t, "unused private function grow", findings[2].Message)
}
