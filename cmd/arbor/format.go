package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tVISIBILITY\tSIGNATURE\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.FullName, s.Kind, s.Visibility, s.Signature, s.File, s.StartLine)
	}
	tw.Flush()
}

// formatDiagnosticsText formats diagnostics compiler-style, one per line.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		code := ""
		if d.Code != "" {
			code = " [" + d.Code + "]"
		}
		fmt.Fprintf(w, "%s:%d:%d: %s%s: %s\n", d.File, d.StartLine, d.StartCol, d.Severity, code, d.Message)
		if len(d.Related) > 0 {
			fmt.Fprintf(w, "    candidates: %s\n", strings.Join(d.Related, ", "))
		}
	}
}

func formatDocumentsText(w io.Writer, docs []CLIDocument) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URI\tREVISION")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%d\n", d.URI, d.Revision)
	}
	tw.Flush()
}

func formatPassText(w io.Writer, p CLIPass) {
	fmt.Fprintf(w, "Pass: %s\n", p.ID)
	fmt.Fprintf(w, "Started: %s (%dms)\n", p.Started, p.ElapsedMS)
	fmt.Fprintf(w, "Documents: %d\n", p.Documents)
	fmt.Fprintf(w, "Rounds: %d\n", p.Rounds)
	fmt.Fprintf(w, "Diagnostics: %d\n", p.Diagnostics)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case []CLIDocument:
		formatDocumentsText(w, v)
	case CLIPass:
		formatPassText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
