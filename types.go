package arbor

import (
	"github.com/jward/arbor/internal/store"
	"github.com/jward/arbor/internal/symbols"
)

// Public aliases for internal types that appear in the Engine API.

type Store = store.Store
type Diff = store.Diff
type StoredSymbol = store.Symbol
type StoredDiagnostic = store.Diagnostic

// Match grades a call-site signature against a declared one.
type Match = symbols.Match

const (
	MatchNo       = symbols.MatchNo
	MatchWildcard = symbols.MatchWildcard
	MatchPartial  = symbols.MatchPartial
	MatchFull     = symbols.MatchFull
)
