package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverridesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte(`
debounce: 250ms
log_level: debug
max_fixpoint_rounds: 8
metrics_addr: localhost:9090
`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce.Std())
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, 8, cfg.MaxFixpointRounds)
	assert.Equal(t, "localhost:9090", cfg.MetricsAddr)
}

func TestParse_EmptyKeepsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, time.Second, cfg.Debounce.Std())
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
	}{
		{"bad level", "log_level: loud"},
		{"negative rounds", "max_fixpoint_rounds: -1"},
		{"bad duration", "debounce: soon"},
		{"bad addr", "metrics_addr: nowhere"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileIsDefault(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_RelativePaths(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("db_path: index.db\nrules_dir: rules\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "index.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, "rules"), cfg.RulesDir)
}
