package main

import "github.com/jward/arbor/internal/store"

// CLIResult is the top-level JSON envelope for all commands that print
// results.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLISymbol is a JSON-friendly symbol representation.
type CLISymbol struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	FullName   string   `json:"full_name"`
	Kind       string   `json:"kind"`
	Visibility string   `json:"visibility,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Type       string   `json:"type,omitempty"`
	Signature  string   `json:"signature,omitempty"`
	File       string   `json:"file,omitempty"`
	StartLine  int      `json:"start_line"`
	StartCol   int      `json:"start_col"`
	EndLine    int      `json:"end_line"`
	EndCol     int      `json:"end_col"`
}

// CLILocation is a position range in a document.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	File      string   `json:"file"`
	Severity  string   `json:"severity"`
	Code      string   `json:"code,omitempty"`
	Phase     string   `json:"phase,omitempty"`
	Message   string   `json:"message"`
	Related   []string `json:"related,omitempty"`
	StartLine int      `json:"start_line"`
	StartCol  int      `json:"start_col"`
	EndLine   int      `json:"end_line"`
	EndCol    int      `json:"end_col"`
}

// CLIPass summarises a package pass.
type CLIPass struct {
	ID          string `json:"id"`
	Started     string `json:"started"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	Documents   int    `json:"documents"`
	Rounds      int    `json:"rounds"`
	Diagnostics int    `json:"diagnostics"`
}

type CLIDocument struct {
	URI      string `json:"uri"`
	Revision int64  `json:"revision"`
}

func symbolToCLI(sym *store.Symbol) CLISymbol {
	return CLISymbol{
		ID:         sym.ID,
		Name:       sym.Name,
		FullName:   sym.FullName,
		Kind:       sym.Kind,
		Visibility: sym.Visibility,
		Modifiers:  sym.Modifiers,
		Type:       sym.TypeName,
		Signature:  sym.Signature,
		File:       sym.URI,
		StartLine:  sym.StartLine,
		StartCol:   sym.StartCol,
		EndLine:    sym.EndLine,
		EndCol:     sym.EndCol,
	}
}

func symbolsToCLI(syms []*store.Symbol) []CLISymbol {
	out := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		out = append(out, symbolToCLI(s))
	}
	return out
}

func diagnosticToCLI(d *store.Diagnostic) CLIDiagnostic {
	return CLIDiagnostic{
		File:      d.URI,
		Severity:  d.Severity,
		Code:      d.Code,
		Phase:     d.Phase,
		Message:   d.Message,
		Related:   d.Related,
		StartLine: d.StartLine,
		StartCol:  d.StartCol,
		EndLine:   d.EndLine,
		EndCol:    d.EndCol,
	}
}
