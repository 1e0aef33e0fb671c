package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/labelcheck/internal/harness"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Run is one stored execution of a suite.
type Run struct {
	ID        string
	StartedAt time.Time
	Prompt    string

	// Digest is the report digest computed when the run finished.
	Digest string

	Results []harness.ScenarioResult
}

// NewRun builds a run record from a finished aggregation.
func NewRun(startedAt time.Time, prompt string, agg *harness.Aggregator) (*Run, error) {
	report := agg.Summarize()
	digest, err := report.Digest()
	if err != nil {
		return nil, fmt.Errorf("new run: %w", err)
	}
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: startedAt.UTC(),
		Prompt:    prompt,
		Digest:    digest,
		Results:   report.Results(),
	}, nil
}

// Report rebuilds the run's report from its results.
func (r *Run) Report() harness.Report {
	return harness.BuildReport(r.Results)
}

// WriteRun inserts a run and its results in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same run twice
// is silently ignored.
func (s *Store) WriteRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("write run: id is required")
	}
	if _, err := uuid.Parse(run.ID); err != nil {
		return fmt.Errorf("write run: invalid id %q: %w", run.ID, err)
	}

	report := run.Report()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, prompt, digest, passed, failed, skipped, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StartedAt.UTC().Format(timeFormat),
		run.Prompt,
		run.Digest,
		report.Passed,
		report.Failed,
		report.Skipped,
		report.Total,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, r := range run.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO results
			(id, run_id, scenario, idx, backend, status, kind, message, response_len, latency_us)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID,
			run.ID,
			r.Scenario,
			r.Index,
			string(r.Backend),
			string(r.Status),
			string(r.Kind),
			r.Message,
			r.ResponseLen,
			r.Latency.Microseconds(),
		)
		if err != nil {
			return fmt.Errorf("write result %s/%s: %w", r.Backend, r.Scenario, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}
