package harness

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/ir"
)

// ErrDivisionUndefined is returned by SuccessRate when nothing was counted.
var ErrDivisionUndefined = errors.New("success rate undefined: no passed or failed results")

// Latency histogram bounds in microseconds.
const (
	latencyMin     = 1
	latencyMax     = 10 * 60 * 1_000_000
	latencySigFigs = 3
)

// Aggregator collects results from concurrent pairs.
// Add is append-only; the order of calls does not affect Summarize.
type Aggregator struct {
	mu      sync.Mutex
	results []ScenarioResult
	latency map[backend.Identity]*hdrhistogram.Histogram
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{latency: make(map[backend.Identity]*hdrhistogram.Histogram)}
}

// Add records one result. Safe for concurrent use.
func (a *Aggregator) Add(r ScenarioResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, r)

	if r.Status == StatusSkipped || r.Latency <= 0 {
		return
	}
	h, ok := a.latency[r.Backend]
	if !ok {
		h = hdrhistogram.New(latencyMin, latencyMax, latencySigFigs)
		a.latency[r.Backend] = h
	}
	us := r.Latency.Microseconds()
	if us < latencyMin {
		us = latencyMin
	}
	if us > latencyMax {
		us = latencyMax
	}
	_ = h.RecordValue(us)
}

// Len returns the number of recorded results.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Results returns a sorted copy of the recorded results.
func (a *Aggregator) Results() []ScenarioResult {
	a.mu.Lock()
	out := make([]ScenarioResult, len(a.results))
	copy(out, a.results)
	a.mu.Unlock()

	sortResults(out)
	return out
}

// Summarize derives a Report from everything recorded so far.
// Nothing is cached; two calls without an Add in between are equal.
func (a *Aggregator) Summarize() Report {
	return BuildReport(a.Results())
}

// LatencyStats summarizes dispatched-pair latency for one backend.
type LatencyStats struct {
	Count int64
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

// Latency reports latency stats for id. The zero value means no pair was
// dispatched.
func (a *Aggregator) Latency(id backend.Identity) LatencyStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.latency[id]
	if !ok {
		return LatencyStats{}
	}
	return LatencyStats{
		Count: h.TotalCount(),
		P50:   time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		Max:   time.Duration(h.Max()) * time.Microsecond,
	}
}

// Counts are tallies over a set of results. Failed includes errors.
type Counts struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

func (c *Counts) add(r ScenarioResult) {
	c.Total++
	switch r.Status {
	case StatusPass:
		c.Passed++
	case StatusFail, StatusError:
		c.Failed++
	case StatusSkipped:
		c.Skipped++
	}
}

// SuccessRate returns passed / (passed + failed).
func SuccessRate(passed, failed int) (float64, error) {
	if passed+failed == 0 {
		return 0, ErrDivisionUndefined
	}
	return float64(passed) / float64(passed+failed), nil
}

// BackendReport is the slice of a Report for one backend.
type BackendReport struct {
	Backend backend.Identity `json:"backend"`
	Counts

	// SuccessRate is 0 when RateUndefined.
	SuccessRate   float64          `json:"success_rate"`
	RateUndefined bool             `json:"rate_undefined,omitempty"`
	Results       []ScenarioResult `json:"results"`
}

// Report is the summary of a run.
type Report struct {
	Backends []BackendReport `json:"backends"`
	Counts

	// SuccessRate is 0 when RateUndefined.
	SuccessRate   float64 `json:"success_rate"`
	RateUndefined bool    `json:"rate_undefined,omitempty"`
}

// BuildReport groups results by backend. Backends are sorted by identity
// and results by (index, scenario name).
func BuildReport(results []ScenarioResult) Report {
	sorted := make([]ScenarioResult, len(results))
	copy(sorted, results)
	sortResults(sorted)

	var rep Report
	byBackend := make(map[backend.Identity]*BackendReport)
	var order []backend.Identity
	for _, r := range sorted {
		br, ok := byBackend[r.Backend]
		if !ok {
			br = &BackendReport{Backend: r.Backend, Results: []ScenarioResult{}}
			byBackend[r.Backend] = br
			order = append(order, r.Backend)
		}
		br.Results = append(br.Results, r)
		br.Counts.add(r)
		rep.Counts.add(r)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	rep.Backends = make([]BackendReport, 0, len(order))
	for _, id := range order {
		br := byBackend[id]
		rate, err := SuccessRate(br.Passed, br.Failed)
		br.SuccessRate = rate
		br.RateUndefined = errors.Is(err, ErrDivisionUndefined)
		rep.Backends = append(rep.Backends, *br)
	}

	rate, err := SuccessRate(rep.Passed, rep.Failed)
	rep.SuccessRate = rate
	rep.RateUndefined = errors.Is(err, ErrDivisionUndefined)
	return rep
}

// Backend returns the section for id.
func (r Report) Backend(id backend.Identity) (BackendReport, bool) {
	for _, b := range r.Backends {
		if b.Backend == id {
			return b, true
		}
	}
	return BackendReport{}, false
}

// Results returns every result in report order.
func (r Report) Results() []ScenarioResult {
	out := make([]ScenarioResult, 0, r.Total)
	for _, b := range r.Backends {
		out = append(out, b.Results...)
	}
	return out
}

// FormatRate renders a success rate as a percentage with one decimal.
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// Snapshot returns the canonical form of the report. Rates are rendered
// as strings since canonical JSON carries no floats.
func (r Report) Snapshot() map[string]any {
	backends := make([]any, len(r.Backends))
	for i, b := range r.Backends {
		results := make([]any, len(b.Results))
		for j, res := range b.Results {
			m := map[string]any{
				"id":           res.ID,
				"scenario":     res.Scenario,
				"index":        res.Index,
				"backend":      string(res.Backend),
				"status":       string(res.Status),
				"response_len": res.ResponseLen,
			}
			if res.Kind != "" {
				m["kind"] = string(res.Kind)
			}
			if res.Message != "" {
				m["message"] = res.Message
			}
			results[j] = m
		}
		section := countsSnapshot(b.Counts)
		section["backend"] = string(b.Backend)
		section["success_rate"] = FormatRate(b.SuccessRate)
		if b.RateUndefined {
			section["rate_undefined"] = true
		}
		section["results"] = results
		backends[i] = section
	}

	snap := countsSnapshot(r.Counts)
	snap["backends"] = backends
	snap["success_rate"] = FormatRate(r.SuccessRate)
	if r.RateUndefined {
		snap["rate_undefined"] = true
	}
	return snap
}

func countsSnapshot(c Counts) map[string]any {
	return map[string]any{
		"passed":  c.Passed,
		"failed":  c.Failed,
		"skipped": c.Skipped,
		"total":   c.Total,
	}
}

// Digest is the content hash of the report snapshot. Runs with identical
// outcomes have identical digests regardless of latency.
func (r Report) Digest() (string, error) {
	return ir.Digest(ir.DomainReport, r.Snapshot())
}

func sortResults(rs []ScenarioResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Backend != rs[j].Backend {
			return rs[i].Backend < rs[j].Backend
		}
		if rs[i].Index != rs[j].Index {
			return rs[i].Index < rs[j].Index
		}
		return rs[i].Scenario < rs[j].Scenario
	})
}
