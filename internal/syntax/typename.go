package syntax

import "strings"

// TypeName is a possibly qualified type reference such as A.B.C. Each segment
// keeps its own range so resolution failures can point at the exact segment.
type TypeName struct {
	Segments []Ident
	Range    Range
}

// NewTypeName splits a dotted name starting at p into segments with ranges
// computed from their offsets.
func NewTypeName(name string, p Pos) *TypeName {
	tn := &TypeName{Range: span(p, len(name))}
	if name == "" {
		return tn
	}
	col := p.Col
	for _, part := range strings.Split(name, ".") {
		tn.Segments = append(tn.Segments, Ident{
			Name:  part,
			Range: span(Pos{Line: p.Line, Col: col}, len(part)),
		})
		col += len(part) + 1
	}
	return tn
}

// Name returns the dotted name.
func (t *TypeName) Name() string {
	if t == nil {
		return ""
	}
	parts := make([]string, len(t.Segments))
	for i, s := range t.Segments {
		parts[i] = s.Name
	}
	return strings.Join(parts, ".")
}

func (t *TypeName) String() string {
	return t.Name()
}
