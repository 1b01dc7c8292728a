package store

import (
	"database/sql"
	"fmt"
)

// --- Pass and document operations ---

// LatestPass returns the pass that wrote the stored snapshot, or nil.
func (s *Store) LatestPass() (*Pass, error) {
	p := &Pass{}
	err := s.db.QueryRow(
		"SELECT id, started, elapsed_ms, documents, rounds, diagnostics FROM passes ORDER BY started DESC LIMIT 1",
	).Scan(&p.ID, &p.Started, &p.ElapsedMS, &p.Documents, &p.Rounds, &p.Diagnostics)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest pass: %w", err)
	}
	return p, nil
}

func (s *Store) Documents() ([]*Document, error) {
	rows, err := s.db.Query("SELECT id, uri, revision, pass_id FROM documents ORDER BY uri")
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	defer rows.Close()
	var docs []*Document
	for rows.Next() {
		d := &Document{}
		if err := rows.Scan(&d.ID, &d.URI, &d.Revision, &d.PassID); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// --- Symbol operations ---

const symbolColumns = `s.id, s.document_id, s.name, s.full_name, s.kind, s.visibility, s.modifiers,
	s.type_name, s.signature, s.signature_hash, s.start_line, s.start_col, s.end_line, s.end_col,
	s.parent_symbol_id, COALESCE(d.uri, '')`

const symbolFrom = ` FROM symbols s LEFT JOIN documents d ON d.id = s.document_id`

func scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var vis, mods, typeName, sig, hash sql.NullString
	err := scanner.Scan(
		&sym.ID, &sym.DocumentID, &sym.Name, &sym.FullName, &sym.Kind, &vis, &mods,
		&typeName, &sig, &hash, &sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol,
		&sym.ParentSymbolID, &sym.URI,
	)
	if err != nil {
		return nil, err
	}
	sym.Visibility = vis.String
	sym.Modifiers = unmarshalStrings(mods.String)
	sym.TypeName = typeName.String
	sym.Signature = sig.String
	sym.SignatureHash = hash.String
	return sym, nil
}

func (s *Store) querySymbols(where string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query("SELECT "+symbolColumns+symbolFrom+" WHERE "+where+" ORDER BY s.full_name, s.id", args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()
	var syms []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		syms = append(syms, sym)
	}
	return syms, rows.Err()
}

// SymbolByID returns the symbol with the given ID, or nil.
func (s *Store) SymbolByID(id int64) (*Symbol, error) {
	sym, err := scanSymbol(s.db.QueryRow("SELECT "+symbolColumns+symbolFrom+" WHERE s.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbol by id: %w", err)
	}
	return sym, nil
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("s.name = ?", name)
}

// SymbolsByFullName returns every symbol with the full name; overloads
// share one.
func (s *Store) SymbolsByFullName(fullName string) ([]*Symbol, error) {
	return s.querySymbols("s.full_name = ?", fullName)
}

func (s *Store) SymbolsByKind(kind string) ([]*Symbol, error) {
	return s.querySymbols("s.kind = ?", kind)
}

func (s *Store) SymbolsByDocument(uri string) ([]*Symbol, error) {
	return s.querySymbols("d.uri = ?", uri)
}

func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols("s.parent_symbol_id = ?", symbolID)
}

// --- Usage operations ---

// UsagesOf returns the usage sites of a symbol in source order.
func (s *Store) UsagesOf(symbolID int64) ([]*Location, error) {
	rows, err := s.db.Query(
		`SELECT d.uri, u.start_line, u.start_col, u.end_line, u.end_col
		 FROM usages u JOIN documents d ON d.id = u.document_id
		 WHERE u.symbol_id = ?
		 ORDER BY d.uri, u.start_line, u.start_col`, symbolID,
	)
	if err != nil {
		return nil, fmt.Errorf("usages of: %w", err)
	}
	defer rows.Close()
	var locs []*Location
	for rows.Next() {
		l := &Location{}
		if err := rows.Scan(&l.URI, &l.StartLine, &l.StartCol, &l.EndLine, &l.EndCol); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

// --- Implementation operations ---

// Subtypes returns the types that directly extend or implement the symbol.
func (s *Store) Subtypes(superSymbolID int64) ([]*Symbol, error) {
	return s.querySymbols("s.id IN (SELECT type_symbol_id FROM implementations WHERE super_symbol_id = ?)", superSymbolID)
}

// Supertypes returns the direct supertypes of the symbol.
func (s *Store) Supertypes(typeSymbolID int64) ([]*Symbol, error) {
	return s.querySymbols("s.id IN (SELECT super_symbol_id FROM implementations WHERE type_symbol_id = ?)", typeSymbolID)
}

// --- Diagnostic operations ---

func (s *Store) queryDiagnostics(where string, args ...any) ([]*Diagnostic, error) {
	rows, err := s.db.Query(
		`SELECT x.id, x.document_id, x.severity, x.code, x.phase, x.message, x.related,
			x.start_line, x.start_col, x.end_line, x.end_col, d.uri
		 FROM diagnostics x JOIN documents d ON d.id = x.document_id
		 WHERE `+where+`
		 ORDER BY d.uri, x.start_line, x.start_col, x.id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()
	var out []*Diagnostic
	for rows.Next() {
		x := &Diagnostic{}
		var code, related sql.NullString
		if err := rows.Scan(&x.ID, &x.DocumentID, &x.Severity, &code, &x.Phase, &x.Message, &related,
			&x.StartLine, &x.StartCol, &x.EndLine, &x.EndCol, &x.URI); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		x.Code = code.String
		x.Related = unmarshalStrings(related.String)
		out = append(out, x)
	}
	return out, rows.Err()
}

// Diagnostics returns every stored diagnostic ordered by document and
// position.
func (s *Store) Diagnostics() ([]*Diagnostic, error) {
	return s.queryDiagnostics("1 = 1")
}

func (s *Store) DiagnosticsByDocument(uri string) ([]*Diagnostic, error) {
	return s.queryDiagnostics("d.uri = ?", uri)
}

// DiagnosticsBySeverity returns the diagnostics of one severity.
func (s *Store) DiagnosticsBySeverity(severity string) ([]*Diagnostic, error) {
	return s.queryDiagnostics("x.severity = ?", severity)
}
