package script

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/arbor/internal/diag"
)

// makeSymbolsFn creates the "symbols" host function.
//
// symbols([kind]) → [{name, full_name, kind, visibility, type, uri, line, col}]
func makeSymbolsFn(host Host) *object.Builtin {
	return object.NewBuiltin("symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("symbols: expected at most 1 argument, got %d", len(args))
		}
		var kind string
		if len(args) == 1 {
			k, err := toString(args[0])
			if err != nil {
				return object.Errorf("symbols: %v", err)
			}
			kind = k
		}

		syms, err := host.Symbols(kind)
		if err != nil {
			return object.Errorf("symbols: %v", err)
		}
		var results []object.Object
		for _, s := range syms {
			results = append(results, object.NewMap(map[string]object.Object{
				"name":       object.NewString(s.Name),
				"full_name":  object.NewString(s.FullName),
				"kind":       object.NewString(s.Kind),
				"visibility": object.NewString(s.Visibility),
				"type":       object.NewString(s.Type),
				"uri":        object.NewString(s.URI),
				"line":       object.NewInt(int64(s.Line)),
				"col":        object.NewInt(int64(s.Col)),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// makeUsagesFn creates the "usages" host function.
//
// usages(full_name) → [{uri, line, col}]
func makeUsagesFn(host Host) *object.Builtin {
	return object.NewBuiltin("usages", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("usages", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("usages: %v", err)
		}

		var results []object.Object
		for _, l := range host.Usages(name) {
			results = append(results, object.NewMap(map[string]object.Object{
				"uri":  object.NewString(l.URI),
				"line": object.NewInt(int64(l.Line)),
				"col":  object.NewInt(int64(l.Col)),
			}))
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

type reporter struct {
	rule     string
	findings []Finding
}

// makeReportFn creates the "report" host function. Severity defaults to
// "warning".
//
// report({uri, line, col, message, severity})
func makeReportFn(rep *reporter) *object.Builtin {
	return object.NewBuiltin("report", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("report", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("report: %v", err)
		}

		f := Finding{
			Rule:     rep.rule,
			URI:      getString(m, "uri"),
			Line:     getInt(m, "line"),
			Col:      getInt(m, "col"),
			Message:  getString(m, "message"),
			Severity: diag.Warning,
		}
		if f.URI == "" {
			return object.Errorf("report: uri is required")
		}
		if f.Message == "" {
			return object.Errorf("report: message is required")
		}
		if s := getString(m, "severity"); s != "" {
			sev, ok := diag.ParseSeverity(s)
			if !ok {
				return object.Errorf("report: unknown severity %q", s)
			}
			f.Severity = sev
		}
		rep.findings = append(rep.findings, f)
		return object.Nil
	})
}

// logObject provides log.Info/Warn/Error methods for rules.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	if s, ok := m[key].(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	switch v := m[key].(type) {
	case *object.Int:
		return int(v.Value())
	case *object.Float:
		return int(v.Value())
	}
	return 0
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
