// Package testutil provides deterministic doubles for harness tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/labels"
)

// Step is one scripted outcome of a StubAdapter invoke.
type Step struct {
	Text string
	Err  error

	// Forwarded overrides the reported wire labels. When nil the stub
	// reports the effective set it was given.
	Forwarded *labels.Set

	// Delay blocks the invoke. With IgnoreContext the stub keeps blocking
	// after ctx is done.
	Delay         time.Duration
	IgnoreContext bool
}

// Reply returns a step answering with text.
func Reply(text string) Step {
	return Step{Text: text}
}

// Fail returns a step failing with err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Hang returns a step that blocks for d and ignores cancellation.
func Hang(d time.Duration) Step {
	return Step{Text: "late", Delay: d, IgnoreContext: true}
}

// Call records one invoke seen by a StubAdapter.
type Call struct {
	Prompt string
	Labels *labels.Set
}

// StubAdapter is a scripted backend.Adapter.
//
// Steps are consumed in order; once exhausted the fallback step is used.
// The default fallback replies "ok".
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StubAdapter struct {
	id backend.Identity

	mu         sync.Mutex
	configured bool
	missing    []string
	steps      []Step
	fallback   Step
	calls      []Call
}

// NewStubAdapter returns a configured stub for id.
func NewStubAdapter(id backend.Identity) *StubAdapter {
	return &StubAdapter{id: id, configured: true, fallback: Reply("ok")}
}

// Then appends a scripted step.
func (s *StubAdapter) Then(step Step) *StubAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
	return s
}

// Always sets the step used after the script runs out.
func (s *StubAdapter) Always(step Step) *StubAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = step
	return s
}

// Unconfigured marks the stub as lacking the named credentials.
func (s *StubAdapter) Unconfigured(missing ...string) *StubAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = false
	s.missing = append([]string(nil), missing...)
	return s
}

// Missing returns the keys passed to Unconfigured.
func (s *StubAdapter) Missing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.missing...)
}

func (s *StubAdapter) Identity() backend.Identity {
	return s.id
}

func (s *StubAdapter) Configured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configured
}

func (s *StubAdapter) Invoke(ctx context.Context, effective *labels.Set, prompt string) (*backend.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, Labels: effective})
	step := s.fallback
	if len(s.steps) > 0 {
		step = s.steps[0]
		s.steps = s.steps[1:]
	}
	s.mu.Unlock()

	if step.Delay > 0 {
		if step.IgnoreContext {
			time.Sleep(step.Delay)
		} else {
			timer := time.NewTimer(step.Delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, backend.Classify(ctx.Err())
			}
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}

	forwarded := step.Forwarded
	if forwarded == nil {
		forwarded = labels.Merge(labels.Layer{Labels: effective})
	}
	return &backend.Response{Text: step.Text, Forwarded: forwarded}, nil
}

// Calls returns the number of invokes seen.
func (s *StubAdapter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// CallLog returns a copy of the recorded invokes in arrival order.
func (s *StubAdapter) CallLog() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// MapEnv adapts a map to backend.LookupFunc.
func MapEnv(m map[string]string) backend.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}
