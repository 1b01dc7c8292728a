package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/arbor/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the resolved index",
	Long:  "Run queries against the index written by 'arbor index' or 'arbor watch'. All line and column numbers are 0-based.",
}

func init() {
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(symbolCmd)
	queryCmd.AddCommand(childrenCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(subtypesCmd)
	queryCmd.AddCommand(supertypesCmd)
	queryCmd.AddCommand(diagnosticsCmd)
	queryCmd.AddCommand(documentsCmd)
	queryCmd.AddCommand(passCmd)
}

// --- Helpers ---

// openStore opens the index of the repository containing the working
// directory.
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	cfg, err := loadConfig(findRepoRoot(cwd))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'arbor index' first)", cfg.DBPath)
	}
	return store.NewStore(cfg.DBPath)
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func outputList[T any](command string, items []T) error {
	n := len(items)
	if items == nil {
		items = []T{}
	}
	return outputResult(CLIResult{Command: command, Results: items, TotalCount: &n})
}

// symbolsNamed returns every symbol with the full name, failing when there
// is none.
func symbolsNamed(s *store.Store, fullName string) ([]*store.Symbol, error) {
	syms, err := s.SymbolsByFullName(fullName)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		return nil, fmt.Errorf("no symbol named %q", fullName)
	}
	return syms, nil
}

// --- Symbol commands ---

var (
	flagKind string
	flagName string
	flagFile string
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List symbols by kind, simple name or document",
	Args:  cobra.NoArgs,
	RunE:  runSymbols,
}

func init() {
	symbolsCmd.Flags().StringVar(&flagKind, "kind", "", "symbol kind (namespace, class, interface, enum, function, variable)")
	symbolsCmd.Flags().StringVar(&flagName, "name", "", "simple name")
	symbolsCmd.Flags().StringVar(&flagFile, "file", "", "document URI")
}

func runSymbols(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("symbols", err)
	}
	defer s.Close()

	var syms []*store.Symbol
	switch {
	case flagFile != "":
		syms, err = s.SymbolsByDocument(flagFile)
	case flagName != "":
		syms, err = s.SymbolsByName(flagName)
	case flagKind != "":
		syms, err = s.SymbolsByKind(flagKind)
	default:
		err = fmt.Errorf("one of --kind, --name or --file is required")
	}
	if err != nil {
		return outputError("symbols", err)
	}

	var out []CLISymbol
	for _, sym := range syms {
		if flagKind != "" && sym.Kind != flagKind {
			continue
		}
		if flagName != "" && sym.Name != flagName {
			continue
		}
		out = append(out, symbolToCLI(sym))
	}
	return outputList("symbols", out)
}

var symbolCmd = &cobra.Command{
	Use:   "symbol <full-name>",
	Short: "Show a symbol and its overloads",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbol,
}

func runSymbol(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("symbol", err)
	}
	defer s.Close()

	syms, err := symbolsNamed(s, args[0])
	if err != nil {
		return outputError("symbol", err)
	}
	return outputList("symbol", symbolsToCLI(syms))
}

var childrenCmd = &cobra.Command{
	Use:   "children <full-name>",
	Short: "List the members of a type or namespace",
	Args:  cobra.ExactArgs(1),
	RunE:  runChildren,
}

func runChildren(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("children", err)
	}
	defer s.Close()

	parents, err := symbolsNamed(s, args[0])
	if err != nil {
		return outputError("children", err)
	}
	var out []CLISymbol
	for _, p := range parents {
		children, err := s.SymbolChildren(p.ID)
		if err != nil {
			return outputError("children", err)
		}
		out = append(out, symbolsToCLI(children)...)
	}
	return outputList("children", out)
}

var referencesCmd = &cobra.Command{
	Use:   "references <full-name>",
	Short: "List the usages of a symbol, every overload included",
	Args:  cobra.ExactArgs(1),
	RunE:  runReferences,
}

func runReferences(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("references", err)
	}
	defer s.Close()

	syms, err := symbolsNamed(s, args[0])
	if err != nil {
		return outputError("references", err)
	}
	var out []CLILocation
	for _, sym := range syms {
		locs, err := s.UsagesOf(sym.ID)
		if err != nil {
			return outputError("references", err)
		}
		for _, l := range locs {
			out = append(out, CLILocation{
				File:      l.URI,
				StartLine: l.StartLine,
				StartCol:  l.StartCol,
				EndLine:   l.EndLine,
				EndCol:    l.EndCol,
			})
		}
	}
	return outputList("references", out)
}

// --- Hierarchy commands ---

var subtypesCmd = &cobra.Command{
	Use:   "subtypes <full-name>",
	Short: "List the types that directly extend or implement a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHierarchy("subtypes", args[0], (*store.Store).Subtypes)
	},
}

var supertypesCmd = &cobra.Command{
	Use:   "supertypes <full-name>",
	Short: "List the direct supertypes of a type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHierarchy("supertypes", args[0], (*store.Store).Supertypes)
	},
}

func runHierarchy(command, fullName string, lookup func(*store.Store, int64) ([]*store.Symbol, error)) error {
	s, err := openStore()
	if err != nil {
		return outputError(command, err)
	}
	defer s.Close()

	syms, err := symbolsNamed(s, fullName)
	if err != nil {
		return outputError(command, err)
	}
	var out []CLISymbol
	for _, sym := range syms {
		related, err := lookup(s, sym.ID)
		if err != nil {
			return outputError(command, err)
		}
		out = append(out, symbolsToCLI(related)...)
	}
	return outputList(command, out)
}

// --- Diagnostics and passes ---

var flagSeverity string

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "List stored diagnostics",
	Args:  cobra.NoArgs,
	RunE:  runDiagnostics,
}

func init() {
	diagnosticsCmd.Flags().StringVar(&flagFile, "file", "", "document URI")
	diagnosticsCmd.Flags().StringVar(&flagSeverity, "severity", "", "severity: error|warning|info|hint")
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("diagnostics", err)
	}
	defer s.Close()

	var diags []*store.Diagnostic
	switch {
	case flagFile != "":
		diags, err = s.DiagnosticsByDocument(flagFile)
	case flagSeverity != "":
		diags, err = s.DiagnosticsBySeverity(flagSeverity)
	default:
		diags, err = s.Diagnostics()
	}
	if err != nil {
		return outputError("diagnostics", err)
	}

	var out []CLIDiagnostic
	for _, d := range diags {
		if flagSeverity != "" && d.Severity != flagSeverity {
			continue
		}
		out = append(out, diagnosticToCLI(d))
	}
	return outputList("diagnostics", out)
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE:  runDocuments,
}

func runDocuments(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("documents", err)
	}
	defer s.Close()

	docs, err := s.Documents()
	if err != nil {
		return outputError("documents", err)
	}
	var out []CLIDocument
	for _, d := range docs {
		out = append(out, CLIDocument{URI: d.URI, Revision: d.Revision})
	}
	return outputList("documents", out)
}

var passCmd = &cobra.Command{
	Use:   "pass",
	Short: "Show the package pass that wrote the index",
	Args:  cobra.NoArgs,
	RunE:  runPass,
}

func runPass(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("pass", err)
	}
	defer s.Close()

	p, err := s.LatestPass()
	if err != nil {
		return outputError("pass", err)
	}
	if p == nil {
		return outputResult(CLIResult{Command: "pass", Results: nil})
	}
	return outputResult(CLIResult{Command: "pass", Results: CLIPass{
		ID:          p.ID,
		Started:     p.Started.Format(time.RFC3339),
		ElapsedMS:   p.ElapsedMS,
		Documents:   p.Documents,
		Rounds:      p.Rounds,
		Diagnostics: p.Diagnostics,
	}})
}
