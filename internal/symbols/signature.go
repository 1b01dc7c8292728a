package symbols

import "strings"

// Param is one entry of a signature. A nil Type is "unknown" and matches
// anything.
type Param struct {
	Type Type
	Name string
}

// Signature is an ordered parameter list.
type Signature []Param

// SignatureOf builds a call-site signature from argument types.
func SignatureOf(types ...Type) Signature {
	sig := make(Signature, len(types))
	for i, t := range types {
		sig[i] = Param{Type: t}
	}
	return sig
}

func (s Signature) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		name := "?"
		if p.Type != nil {
			name = p.Type.FullName()
		}
		if p.Name != "" {
			name += " " + p.Name
		}
		parts[i] = name
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Match is the compatibility of a call-site signature with a declared one.
// Larger values are better matches.
type Match int

const (
	// MatchNo: arity mismatch or an incompatible, non-castable parameter.
	MatchNo Match = iota
	// MatchWildcard: compatible, but some parameter type is unknown.
	MatchWildcard
	// MatchPartial: all parameters identical or castable, at least one cast.
	MatchPartial
	// MatchFull: every parameter type identical.
	MatchFull
)

func (m Match) String() string {
	switch m {
	case MatchFull:
		return "full"
	case MatchPartial:
		return "partial"
	case MatchWildcard:
		return "wildcard"
	}
	return "no"
}

// Matches compares the call-site signature args against the declared
// signature params. Compatibility follows Castable exactly.
func Matches(args, params Signature) Match {
	if len(args) != len(params) {
		return MatchNo
	}
	wildcard, partial := false, false
	for i := range args {
		a, p := args[i].Type, params[i].Type
		switch {
		case a == nil || p == nil:
			wildcard = true
		case Identical(a, p):
		case Castable(a, p):
			partial = true
		default:
			return MatchNo
		}
	}
	switch {
	case wildcard:
		return MatchWildcard
	case partial:
		return MatchPartial
	}
	return MatchFull
}

// MatchesExactly reports whether a and b have the same arity and pairwise
// identical resolved parameter types. It rejects duplicate overloads at
// registration time.
func MatchesExactly(a, b Signature) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Identical(a[i].Type, b[i].Type) {
			return false
		}
	}
	return true
}
