package store

import (
	"database/sql"
	"sort"
)

// Diff compares the symbols of a snapshot with those it replaces. Symbols
// are matched by (kind, full name, signature); a match whose signature hash
// differs is Changed.
type Diff struct {
	Added   []string
	Removed []string
	Changed []string
	// Affected lists the documents that used a removed or changed symbol in
	// the previous snapshot, excluding documents the snapshot no longer has.
	Affected []string
}

// Empty reports whether no symbol was added, removed or changed.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

type symbolKey struct {
	kind, fullName, signature string
}

func keyOf(s *Symbol) symbolKey {
	return symbolKey{s.Kind, s.FullName, s.Signature}
}

func diffTx(tx *sql.Tx, snap *Snapshot) (*Diff, error) {
	rows, err := tx.Query("SELECT id, kind, full_name, signature, signature_hash FROM symbols")
	if err != nil {
		return nil, err
	}
	type oldSymbol struct {
		id   int64
		hash string
	}
	old := make(map[symbolKey]oldSymbol)
	for rows.Next() {
		var (
			k  symbolKey
			o  oldSymbol
			sg sql.NullString
			h  sql.NullString
		)
		if err := rows.Scan(&o.id, &k.kind, &k.fullName, &sg, &h); err != nil {
			rows.Close()
			return nil, err
		}
		k.signature, o.hash = sg.String, h.String
		old[k] = o
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	d := &Diff{}
	seen := make(map[symbolKey]bool, len(snap.Symbols))
	var stale []int64
	for i := range snap.Symbols {
		sym := &snap.Symbols[i]
		k := keyOf(sym)
		seen[k] = true
		o, ok := old[k]
		switch {
		case !ok:
			d.Added = append(d.Added, sym.FullName)
		case o.hash != sym.SignatureHash:
			d.Changed = append(d.Changed, sym.FullName)
			stale = append(stale, o.id)
		}
	}
	for k, o := range old {
		if !seen[k] {
			d.Removed = append(d.Removed, k.fullName)
			stale = append(stale, o.id)
		}
	}

	if len(stale) > 0 {
		live := make(map[string]bool, len(snap.Documents))
		for _, doc := range snap.Documents {
			live[doc.URI] = true
		}
		rows, err := tx.Query(
			`SELECT DISTINCT d.uri FROM usages u JOIN documents d ON d.id = u.document_id
			 WHERE u.symbol_id IN (`+placeholderList(len(stale))+`)`,
			int64sToArgs(stale)...,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var uri string
			if err := rows.Scan(&uri); err != nil {
				return nil, err
			}
			if live[uri] {
				d.Affected = append(d.Affected, uri)
			}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	for _, list := range [][]string{d.Added, d.Removed, d.Changed, d.Affected} {
		sort.Strings(list)
	}
	return d, nil
}
