package syntax

import (
	"fmt"

	"go.lsp.dev/protocol"
)

// Pos is a 0-based line/column position in a document.
type Pos struct {
	Line int
	Col  int
}

// Before reports whether p comes strictly before q.
func (p Pos) Before(q Pos) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Range is a half-open source span [Start, End).
type Range struct {
	Start Pos
	End   Pos
}

// Contains reports whether p falls within r. The end position is inclusive so
// that a cursor placed right after an identifier still hits it.
func (r Range) Contains(p Pos) bool {
	return !p.Before(r.Start) && !r.End.Before(p)
}

// IsZero reports whether r is the zero range.
func (r Range) IsZero() bool {
	return r == Range{}
}

// Protocol converts r to its LSP representation.
func (r Range) Protocol() protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(max(r.Start.Line, 0)), Character: uint32(max(r.Start.Col, 0))},
		End:   protocol.Position{Line: uint32(max(r.End.Line, 0)), Character: uint32(max(r.End.Col, 0))},
	}
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// span returns the range starting at p and covering n columns on one line.
func span(p Pos, n int) Range {
	return Range{Start: p, End: Pos{Line: p.Line, Col: p.Col + n}}
}
