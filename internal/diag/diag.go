// Package diag collects the diagnostics produced while resolving a document.
package diag

import (
	"fmt"
	"sort"

	"go.lsp.dev/protocol"

	"github.com/jward/arbor/internal/syntax"
)

// Source is the diagnostic source reported to editors.
const Source = "arbor"

// Phase tags the resolution phase that produced a diagnostic.
type Phase int

const (
	PhaseClasses Phase = iota
	PhaseInheritance
	PhaseMembers
	PhaseStatements
	PhaseRules
)

var phaseNames = [...]string{"classes", "inheritance", "members", "statements", "rules"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Severity mirrors the LSP severities.
type Severity int

const (
	Error Severity = iota + 1
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	}
	return "unknown"
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "error":
		return Error, true
	case "warning":
		return Warning, true
	case "info":
		return Info, true
	case "hint":
		return Hint, true
	}
	return 0, false
}

// Code identifies the kind of problem for code actions.
type Code string

const (
	CodeUnresolvedName     Code = "unresolved-name"
	CodeUnresolvedType     Code = "unresolved-type"
	CodeNoOverload         Code = "no-overload"
	CodeAmbiguousOverload  Code = "ambiguous-overload"
	CodeDuplicateOverload  Code = "duplicate-overload"
	CodeUnresolvedSuper    Code = "unresolved-supertype"
	CodeCyclicInheritance  Code = "cyclic-inheritance"
	CodeInvalidSupertype   Code = "invalid-supertype"
	CodeAutoCast           Code = "auto-cast"
	CodeTypeMismatch       Code = "type-mismatch"
	CodeInaccessibleMember Code = "inaccessible-member"
	CodeNotCallable        Code = "not-callable"
	CodeRule               Code = "rule"
)

// Diagnostic is one record produced by a phase.
type Diagnostic struct {
	Severity Severity
	Range    syntax.Range
	Message  string
	Phase    Phase
	Code     Code
	// Related carries extra data for code actions, such as the candidate
	// overloads of an ambiguous call.
	Related []string
}

// Protocol converts d to its LSP representation.
func (d Diagnostic) Protocol() protocol.Diagnostic {
	pd := protocol.Diagnostic{
		Range:    d.Range.Protocol(),
		Severity: protocol.DiagnosticSeverity(d.Severity),
		Source:   Source,
		Message:  d.Message,
	}
	if d.Code != "" {
		pd.Code = string(d.Code)
	}
	if len(d.Related) > 0 {
		pd.Data = d.Related
	}
	return pd
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s [%s] %s", d.Range.Start, d.Severity, d.Phase, d.Message)
}

// Collector accumulates diagnostics for one document. The zero value is ready
// to use.
type Collector struct {
	items []Diagnostic
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	c.items = append(c.items, d)
}

// Errorf records an error-severity diagnostic.
func (c *Collector) Errorf(phase Phase, code Code, rng syntax.Range, format string, args ...any) {
	c.Add(Diagnostic{Severity: Error, Range: rng, Phase: phase, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Hintf records a hint-severity diagnostic.
func (c *Collector) Hintf(phase Phase, code Code, rng syntax.Range, format string, args ...any) {
	c.Add(Diagnostic{Severity: Hint, Range: rng, Phase: phase, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Reset drops every diagnostic of the given phases.
func (c *Collector) Reset(phases ...Phase) {
	if len(phases) == 0 {
		c.items = c.items[:0]
		return
	}
	kept := c.items[:0]
	for _, d := range c.items {
		drop := false
		for _, p := range phases {
			if d.Phase == p {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, d)
		}
	}
	c.items = kept
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	return len(c.items)
}

// All returns a sorted copy of the collected diagnostics.
func (c *Collector) All() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Range.Start != b.Range.Start {
			return a.Range.Start.Before(b.Range.Start)
		}
		if a.Phase != b.Phase {
			return a.Phase < b.Phase
		}
		return a.Message < b.Message
	})
	return out
}

// Protocol returns the collected diagnostics in LSP form.
func (c *Collector) Protocol() []protocol.Diagnostic {
	all := c.All()
	out := make([]protocol.Diagnostic, len(all))
	for i, d := range all {
		out[i] = d.Protocol()
	}
	return out
}
