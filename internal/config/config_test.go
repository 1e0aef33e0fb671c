package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labelcheck/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labelcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", testutil.MapEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Zero(t, cfg.Retries)
	assert.Empty(t, cfg.Store)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "us-central1", cfg.Vertex.Location)
	assert.Equal(t, "gemini-2.0-flash", cfg.Vertex.Model)
	assert.Equal(t, "gemini-2.0-flash", cfg.GenAI.Model)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
timeout: 5s
concurrency: 3
retries: 2
store: runs.db
log:
  level: debug
  format: json
vertex:
  project: from-file
  location: europe-west4
genai:
  model: gemini-file
`)
	env := testutil.MapEnv(map[string]string{
		EnvConcurrency: "4",
		EnvGenAIModel:  "gemini-env",
		EnvStore:       "  ",
	})

	cfg, err := Load(path, env)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Concurrency, "env wins over file")
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, "runs.db", cfg.Store, "blank env values are ignored")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "from-file", cfg.Vertex.Project)
	assert.Equal(t, "europe-west4", cfg.Vertex.Location)
	assert.Equal(t, "gemini-2.0-flash", cfg.Vertex.Model, "unset keys keep defaults")
	assert.Equal(t, "gemini-env", cfg.GenAI.Model)
}

func TestLoad_LocationFromEnv(t *testing.T) {
	cfg, err := Load("", testutil.MapEnv(map[string]string{"GOOGLE_CLOUD_LOCATION": "asia-east1"}))
	require.NoError(t, err)
	assert.Equal(t, "asia-east1", cfg.Vertex.Location)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{name: "unknown field", file: "timeuot: 5s\n", want: "failed to parse config file"},
		{name: "bad duration env", env: map[string]string{EnvTimeout: "soon"}, want: EnvTimeout},
		{name: "bad int env", env: map[string]string{EnvRetries: "many"}, want: EnvRetries},
		{name: "zero concurrency", file: "concurrency: 0\n", want: "concurrency must be at least 1"},
		{name: "negative retries", env: map[string]string{EnvRetries: "-1"}, want: "retries must be non-negative"},
		{name: "bad level", env: map[string]string{EnvLogLevel: "loud"}, want: "unknown log level"},
		{name: "bad format", file: "log: {format: xml}\n", want: "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := Load(path, testutil.MapEnv(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), testutil.MapEnv(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), testutil.MapEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
