package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/harness"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(t.Context(), path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a run with one pass, one error and one skip.
func createTestRun(startedAt time.Time) *Run {
	pass := harness.NewScenarioResult("basic", 0, backend.Vertex, harness.StatusPass, "", "")
	pass.ResponseLen = 12
	pass.Latency = 1500 * time.Microsecond

	results := []harness.ScenarioResult{
		pass,
		harness.NewScenarioResult("override", 1, backend.Vertex, harness.StatusError, backend.KindTransient, "timeout"),
		harness.NewScenarioResult("basic", 0, backend.GenAI, harness.StatusSkipped, "", "genai: missing GOOGLE_API_KEY"),
	}
	report := harness.BuildReport(results)
	digest, err := report.Digest()
	if err != nil {
		panic(err)
	}
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
		Prompt:    "Say hello.",
		Digest:    digest,
		Results:   report.Results(),
	}
}
