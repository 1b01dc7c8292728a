// Package arbor resolves the semantics of a package of documents written in
// an object-oriented language with namespaces, single class inheritance,
// interfaces, enumerations and overloaded functions.
//
// Documents arrive as syntax trees produced by an external parser (see the
// interchange format decoded by internal/syntax). Each document is resolved
// in four phases:
//
//  1. Classes: namespaces and types are registered in the symbol graph.
//  2. Inheritance: supertypes are bound. Cross-document chains settle in a
//     fixpoint loop that repeats while any document makes progress.
//  3. Members: functions and variables are registered with their signatures.
//  4. Statements: bodies are bound, overloads selected and conversions
//     checked.
//
// # Usage
//
//	e, err := arbor.New(arbor.WithDBPath("arbor.db"))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	uris, err := e.LoadDirectory(ctx, "path/to/project")
//	pass, err := e.Resolve(ctx)
//
//	q := e.Query()
//	locs, err := q.DefinitionAt(ctx, uris[0], protocol.Position{Line: 3, Character: 8})
//
// # Editing
//
// [Engine.Update] re-resolves the edited document immediately and arms a
// debounce timer; once edits settle a full package pass runs in the
// background. [Engine.WaitResolved] blocks until a document's statements are
// bound.
//
// # Rules
//
// With [WithRulesDir], every *.risor file in the directory runs after each
// package pass. Rules read the graph through the symbols and usages globals
// and add diagnostics with report. See internal/script.
package arbor
