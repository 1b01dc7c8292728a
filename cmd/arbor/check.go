package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/jward/arbor"
)

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Resolve a directory and print its diagnostics",
	Long:  "Loads every syntax file under path, runs a package pass and the configured rules, and prints the diagnostics. Exits non-zero when any diagnostic is an error. The index is not written.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	start := time.Now()
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("check", err)
	}
	e, _, err := newEngine(targetDir, false)
	if err != nil {
		return outputError("check", err)
	}
	defer e.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := e.LoadDirectory(ctx, targetDir); err != nil {
		return outputError("check", fmt.Errorf("loading: %w", err))
	}
	res, err := e.Resolve(ctx)
	if err != nil {
		return outputError("check", fmt.Errorf("resolving: %w", err))
	}

	diags, err := collectDiagnostics(ctx, e)
	if err != nil {
		return outputError("check", err)
	}
	fmt.Fprintf(os.Stderr, "Checked %d documents in %s (%d rounds, %d diagnostics)\n",
		res.Documents, time.Since(start).Round(time.Millisecond), res.Rounds, len(diags))

	total := len(diags)
	if err := outputResult(CLIResult{Command: "check", Results: diags, TotalCount: &total}); err != nil {
		return err
	}
	if n := countErrors(diags); n > 0 {
		errorHandled = true
		return fmt.Errorf("%d errors", n)
	}
	return nil
}

// collectDiagnostics gathers the live diagnostics of every open document.
func collectDiagnostics(ctx context.Context, e *arbor.Engine) ([]CLIDiagnostic, error) {
	uris, err := e.Documents(ctx)
	if err != nil {
		return nil, err
	}
	out := []CLIDiagnostic{}
	for _, u := range uris {
		ds, err := e.Query().Diagnostics(ctx, u)
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			out = append(out, protocolToCLI(u, d))
		}
	}
	return out, nil
}

func protocolToCLI(u protocol.DocumentURI, d protocol.Diagnostic) CLIDiagnostic {
	cd := CLIDiagnostic{
		File:      string(u),
		Severity:  severityName(d.Severity),
		Message:   d.Message,
		StartLine: int(d.Range.Start.Line),
		StartCol:  int(d.Range.Start.Character),
		EndLine:   int(d.Range.End.Line),
		EndCol:    int(d.Range.End.Character),
	}
	if d.Code != nil {
		cd.Code = fmt.Sprint(d.Code)
	}
	if related, ok := d.Data.([]string); ok {
		cd.Related = related
	}
	return cd
}

func severityName(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityWarning:
		return "warning"
	case protocol.DiagnosticSeverityInformation:
		return "info"
	case protocol.DiagnosticSeverityHint:
		return "hint"
	}
	return "unknown"
}

func countErrors(diags []CLIDiagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Severity == "error" {
			n++
		}
	}
	return n
}
