package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/harness"
	"github.com/roach88/labelcheck/internal/ir"
)

var (
	// ErrRunNotFound is returned when no run matches an ID or prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when a prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run id prefix is ambiguous")
)

// RunSummary is a history row.
type RunSummary struct {
	ID        string         `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	Digest    string         `json:"digest"`
	Counts    harness.Counts `json:"counts"`
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, started_at, digest, passed, failed, skipped, total
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY ASC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			sum     RunSummary
			started string
		)
		if err := rows.Scan(&sum.ID, &started, &sum.Digest,
			&sum.Counts.Passed, &sum.Counts.Failed, &sum.Counts.Skipped, &sum.Counts.Total); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if sum.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun loads a run by full ID or unique ID prefix.
func (s *Store) ReadRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	id, err := s.resolveID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	run := &Run{ID: id}
	var started string
	err = s.db.QueryRowContext(ctx, `
		SELECT started_at, prompt, digest FROM runs WHERE id = ?
	`, id).Scan(&started, &run.Prompt, &run.Digest)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}

	if run.Results, err = s.readResults(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) resolveID(ctx context.Context, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM runs
		WHERE id = ? OR substr(id, 1, length(?)) = ?
		ORDER BY id COLLATE BINARY ASC
		LIMIT 3
	`, idOrPrefix, idOrPrefix, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("query run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		if id == idOrPrefix {
			return id, nil
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate run ids: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, idOrPrefix)
	}
}

// readResults loads a run's results in report order and checks every
// stored ID against its content.
func (s *Store) readResults(ctx context.Context, runID string) ([]harness.ScenarioResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, idx, backend, status, kind, message, response_len, latency_us
		FROM results
		WHERE run_id = ?
		ORDER BY backend COLLATE BINARY ASC, idx ASC, scenario COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []harness.ScenarioResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

func scanResult(rows *sql.Rows) (harness.ScenarioResult, error) {
	var (
		r                     harness.ScenarioResult
		id, backendID, status string
		kind                  string
		latencyUS             int64
	)
	if err := rows.Scan(&id, &r.Scenario, &r.Index, &backendID, &status, &kind,
		&r.Message, &r.ResponseLen, &latencyUS); err != nil {
		return r, fmt.Errorf("scan result: %w", err)
	}

	st, err := harness.ParseStatus(status)
	if err != nil {
		return r, fmt.Errorf("result %s: %w", id, err)
	}
	r.ID = id
	r.Backend = backend.Identity(backendID)
	r.Status = st
	r.Kind = backend.Kind(kind)
	r.Latency = time.Duration(latencyUS) * time.Microsecond

	want, err := ir.ResultID(r.Scenario, r.Index, backendID, status, kind)
	if err != nil {
		return r, fmt.Errorf("result %s: %w", id, err)
	}
	if want != id {
		return r, fmt.Errorf("result %s: stored id does not match content (want %s)", id, want)
	}
	return r, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse started_at %q: %w", s, err)
	}
	return t, nil
}
