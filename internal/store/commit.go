package store

import (
	"database/sql"
	"fmt"
)

// CommitSnapshot replaces the stored index with snap within a single
// transaction and returns how the symbols changed relative to the previous
// snapshot. Placeholder IDs are remapped to real row IDs and every reference
// within the snapshot is rewritten through that mapping.
//
// Insert order respects FK dependencies:
//  1. Pass
//  2. Documents
//  3. Symbols (parents before children)
//  4. Usages
//  5. Implementations
//  6. Diagnostics
func (s *Store) CommitSnapshot(snap *Snapshot) (*Diff, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("commit snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	diff, err := diffTx(tx, snap)
	if err != nil {
		return nil, fmt.Errorf("commit snapshot: diff: %w", err)
	}
	if err := clearTx(tx); err != nil {
		return nil, fmt.Errorf("commit snapshot: clear: %w", err)
	}

	p := snap.Pass
	if _, err := tx.Exec(
		`INSERT INTO passes (id, started, elapsed_ms, documents, rounds, diagnostics) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Started, p.ElapsedMS, p.Documents, p.Rounds, p.Diagnostics,
	); err != nil {
		return nil, fmt.Errorf("commit snapshot: pass: %w", err)
	}

	fakeToReal := make(map[int64]int64)
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("placeholder id %d not committed", id)
		}
		return realID, nil
	}

	for _, d := range snap.Documents {
		realID, err := insertDocumentTx(tx, &d)
		if err != nil {
			return nil, fmt.Errorf("commit snapshot: document %q: %w", d.URI, err)
		}
		fakeToReal[d.ID] = realID
	}

	for _, sym := range snap.Symbols {
		if sym.DocumentID != nil {
			realID, err := remap(*sym.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("commit snapshot: symbol %q: %w", sym.FullName, err)
			}
			sym.DocumentID = &realID
		}
		if sym.ParentSymbolID != nil {
			realID, err := remap(*sym.ParentSymbolID)
			if err != nil {
				return nil, fmt.Errorf("commit snapshot: symbol %q: %w", sym.FullName, err)
			}
			sym.ParentSymbolID = &realID
		}
		realID, err := insertSymbolTx(tx, &sym)
		if err != nil {
			return nil, fmt.Errorf("commit snapshot: symbol %q: %w", sym.FullName, err)
		}
		fakeToReal[sym.ID] = realID
	}

	for _, u := range snap.Usages {
		if u.SymbolID, err = remap(u.SymbolID); err != nil {
			return nil, fmt.Errorf("commit snapshot: usage: %w", err)
		}
		if u.DocumentID, err = remap(u.DocumentID); err != nil {
			return nil, fmt.Errorf("commit snapshot: usage: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO usages (symbol_id, document_id, start_line, start_col, end_line, end_col)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			u.SymbolID, u.DocumentID, u.StartLine, u.StartCol, u.EndLine, u.EndCol,
		); err != nil {
			return nil, fmt.Errorf("commit snapshot: usage: %w", err)
		}
	}

	for _, impl := range snap.Implementations {
		if impl.TypeSymbolID, err = remap(impl.TypeSymbolID); err != nil {
			return nil, fmt.Errorf("commit snapshot: implementation: %w", err)
		}
		if impl.SuperSymbolID, err = remap(impl.SuperSymbolID); err != nil {
			return nil, fmt.Errorf("commit snapshot: implementation: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO implementations (type_symbol_id, super_symbol_id, kind) VALUES (?, ?, ?)`,
			impl.TypeSymbolID, impl.SuperSymbolID, impl.Kind,
		); err != nil {
			return nil, fmt.Errorf("commit snapshot: implementation: %w", err)
		}
	}

	for _, d := range snap.Diagnostics {
		if d.DocumentID, err = remap(d.DocumentID); err != nil {
			return nil, fmt.Errorf("commit snapshot: diagnostic: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO diagnostics (document_id, severity, code, phase, message, related,
				start_line, start_col, end_line, end_col)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.DocumentID, d.Severity, d.Code, d.Phase, d.Message, marshalStrings(d.Related),
			d.StartLine, d.StartCol, d.EndLine, d.EndCol,
		); err != nil {
			return nil, fmt.Errorf("commit snapshot: diagnostic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return diff, nil
}

// clearTx deletes every indexed row in reverse-dependency order. Metadata is
// kept.
func clearTx(tx *sql.Tx) error {
	for _, q := range []string{
		"DELETE FROM diagnostics",
		"DELETE FROM implementations",
		"DELETE FROM usages",
		"UPDATE symbols SET parent_symbol_id = NULL",
		"DELETE FROM symbols",
		"DELETE FROM documents",
		"DELETE FROM passes",
	} {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func insertDocumentTx(tx *sql.Tx, d *Document) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO documents (uri, revision, pass_id) VALUES (?, ?, ?)`,
		d.URI, d.Revision, d.PassID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (document_id, name, full_name, kind, visibility, modifiers, type_name,
			signature, signature_hash, start_line, start_col, end_line, end_col, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.DocumentID, sym.Name, sym.FullName, sym.Kind, sym.Visibility, marshalStrings(sym.Modifiers),
		sym.TypeName, sym.Signature, sym.SignatureHash,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
