package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "traffic_data.csv", cfg.Dataset.Path)
	assert.Equal(t, "utf-8", cfg.Dataset.Encoding)
	assert.Equal(t, 100, cfg.Model.Trees)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, 0.2, cfg.Model.TestRatio)
	assert.Equal(t, 8501, cfg.Http.Port)
	assert.Equal(t, 30*time.Second, cfg.Http.Timeout)
	assert.Equal(t, int64(1<<20), cfg.Http.MaxBodyBytes)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1024, cfg.Cache.Size)
}

func TestLoad_OverridesAndResolvesPaths(t *testing.T) {
	path := writeConfig(t, `
dataset:
  path: data/traffic.csv
  encoding: windows-1252
model:
  path: /abs/model.bin
  trees: 10
  seed: 7
http:
  port: 9000
  timeout: 5s
database:
  path: runs.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "data/traffic.csv"), cfg.Dataset.Path)
	assert.Equal(t, "windows-1252", cfg.Dataset.Encoding)
	assert.Equal(t, "/abs/model.bin", cfg.Model.Path)
	assert.Equal(t, 10, cfg.Model.Trees)
	assert.Equal(t, int64(7), cfg.Model.Seed)
	assert.Equal(t, 0.2, cfg.Model.TestRatio, "unset keys keep defaults")
	assert.Equal(t, 9000, cfg.Http.Port)
	assert.Equal(t, 5*time.Second, cfg.Http.Timeout)
	assert.Equal(t, filepath.Join(dir, "runs.db"), cfg.Database.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero trees", "model:\n  trees: -1\n", "model.trees"},
		{"bad ratio", "model:\n  test_ratio: 1.5\n", "model.test_ratio"},
		{"bad port", "http:\n  port: 70000\n", "http.port"},
		{"negative body cap", "http:\n  max_body_bytes: -1\n", "http.max_body_bytes"},
		{"malformed", "model: [", "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
