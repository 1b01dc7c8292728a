package main_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the arbor CLI into a temp dir.
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "arbor"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "arbor")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot walks up from this file's directory to the one holding go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

// createFixture writes a small workspace: a shape hierarchy, a rule and an
// arbor.yaml pointing at it.
func createFixture(t *testing.T, extra map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	files := map[string]string{
		"arbor.yaml": "rules_dir: rules\nlog_level: warn\n",
		"shape.arb.yaml": `
decls:
  - class: Shape
    members:
      - var: secret
        type: Int
        visibility: private
      - function: area
`,
		"circle.arb.yaml": `
decls:
  - class: Circle
    extends: Shape
    members:
      - function: area
      - function: draw
        body:
          - expr: {call: area}
`,
		"rules/unused.risor": `
vars := symbols("variable")
for i := 0; i < len(vars); i++ {
    v := vars[i]
    if v["visibility"] == "private" && len(usages(v["full_name"])) == 0 {
        report({"uri": v["uri"], "line": v["line"], "col": v["col"], "message": "unused private member " + v["name"]})
    }
}
`,
	}
	for k, v := range extra {
		files[k] = v
	}
	for rel, content := range files {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, bin, dir string, args ...string) ([]byte, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "HOME="+t.TempDir())
	return cmd.Output()
}

// runJSON executes a command and decodes its CLIResult envelope.
func runJSON(t *testing.T, bin, dir string, args ...string) map[string]any {
	t.Helper()
	stdout, err := run(t, bin, dir, args...)
	if err != nil && len(stdout) == 0 {
		t.Fatalf("%v failed with no output: %v", args, err)
	}
	var result map[string]any
	require.NoError(t, json.Unmarshal(stdout, &result), "invalid JSON output: %s", string(stdout))
	return result
}

func results(t *testing.T, result map[string]any) []any {
	t.Helper()
	items, ok := result["results"].([]any)
	require.True(t, ok, "results should be a list: %v", result)
	return items
}

func TestCLI_IndexAndQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	dir := createFixture(t, nil)

	_, err := run(t, bin, dir, "index", dir)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, ".arbor", "index.db"))

	classes := results(t, runJSON(t, bin, dir, "query", "symbols", "--kind", "class"))
	require.Len(t, classes, 2)
	assert.Equal(t, "Circle", classes[0].(map[string]any)["full_name"])

	subs := results(t, runJSON(t, bin, dir, "query", "subtypes", "Shape"))
	require.Len(t, subs, 1)
	assert.Equal(t, "Circle", subs[0].(map[string]any)["full_name"])

	refs := results(t, runJSON(t, bin, dir, "query", "references", "Circle.area"))
	require.Len(t, refs, 1)
	assert.True(t, strings.HasSuffix(refs[0].(map[string]any)["file"].(string), "circle.arb.yaml"))

	children := results(t, runJSON(t, bin, dir, "query", "children", "Shape"))
	assert.Len(t, children, 2)

	diags := results(t, runJSON(t, bin, dir, "query", "diagnostics"))
	require.Len(t, diags, 1)
	d := diags[0].(map[string]any)
	assert.Equal(t, "rule", d["code"])
	assert.Equal(t, "rules", d["phase"])

	pass := runJSON(t, bin, dir, "query", "pass")["results"].(map[string]any)
	assert.Equal(t, float64(2), pass["documents"])

	missing := runJSON(t, bin, dir, "query", "symbol", "Nope")
	assert.Contains(t, missing["error"], "no symbol named")
}

func TestCLI_QueryWithoutIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	dir := createFixture(t, nil)

	result := runJSON(t, bin, dir, "query", "documents")
	assert.Contains(t, result["error"], "database not found")
}

func TestCLI_CheckExitsNonZeroOnErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)

	clean := createFixture(t, nil)
	result := runJSON(t, bin, clean, "check", clean)
	assert.Len(t, results(t, result), 1)
	assert.NoFileExists(t, filepath.Join(clean, ".arbor", "index.db"))

	broken := createFixture(t, map[string]string{"bad.arb.yaml": `
decls:
  - class: Bad
    extends: Missing
`})
	stdout, err := run(t, bin, broken, "check", broken, "--format", "text")
	require.Error(t, err)
	assert.Contains(t, string(stdout), "unresolved-supertype")
}
