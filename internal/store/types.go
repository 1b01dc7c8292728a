package store

import "time"

// Pass is one package pass that produced the stored snapshot.
type Pass struct {
	ID          string
	Started     time.Time
	ElapsedMS   int64
	Documents   int
	Rounds      int
	Diagnostics int
}

type Document struct {
	ID       int64
	URI      string
	Revision int64
	PassID   string
}

// Symbol is one node of the resolved graph. Overloads share a FullName and
// differ by Signature.
type Symbol struct {
	ID             int64
	DocumentID     *int64
	Name           string
	FullName       string
	Kind           string
	Visibility     string
	Modifiers      []string
	TypeName       string
	Signature      string
	SignatureHash  string
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
	ParentSymbolID *int64

	// URI is filled in by queries from the owning document.
	URI string
}

type Usage struct {
	ID         int64
	SymbolID   int64
	DocumentID int64
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

// Implementation links a type to a direct supertype. Kind is "extends" or
// "implements".
type Implementation struct {
	ID            int64
	TypeSymbolID  int64
	SuperSymbolID int64
	Kind          string
}

type Diagnostic struct {
	ID         int64
	DocumentID int64
	Severity   string
	Code       string
	Phase      string
	Message    string
	Related    []string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int

	// URI is filled in by queries from the owning document.
	URI string
}

// Location is a usage or declaration joined with its document URI.
type Location struct {
	URI       string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}
