package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/labels"
)

// Fatal configuration errors. Everything else is recorded as a result.
var (
	ErrNoBackends       = errors.New("no backends registered")
	ErrDuplicateBackend = errors.New("duplicate backend")
	ErrNoScenarios      = errors.New("suite has no scenarios")
)

// DefaultConcurrency bounds how many backends run at once.
const DefaultConcurrency = 2

// Reasons recorded on skipped results.
const (
	ReasonNotSelected = "not selected"
)

// Harness dispatches scenarios across a fixed set of adapters.
// A Harness holds no per-run state and may run several suites.
type Harness struct {
	adapters    []backend.Adapter
	logger      *zap.Logger
	timeout     time.Duration
	concurrency int
	now         func() time.Time
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. Pair transitions are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithTimeout bounds every invoke. Zero means no harness deadline.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) {
		h.timeout = d
	}
}

// WithConcurrency sets how many backends run at once. Values below one
// are raised to one.
func WithConcurrency(n int) Option {
	return func(h *Harness) {
		if n < 1 {
			n = 1
		}
		h.concurrency = n
	}
}

// WithClock sets the time source used for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) {
		if now != nil {
			h.now = now
		}
	}
}

// New creates a harness over adapters. Each identity may appear once.
func New(adapters []backend.Adapter, opts ...Option) (*Harness, error) {
	if len(adapters) == 0 {
		return nil, ErrNoBackends
	}

	seen := make(map[backend.Identity]bool, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("nil adapter: %w", ErrNoBackends)
		}
		if seen[a.Identity()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBackend, a.Identity())
		}
		seen[a.Identity()] = true
	}

	h := &Harness{
		adapters:    append([]backend.Adapter(nil), adapters...),
		logger:      zap.NewNop(),
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Backends returns the registered identities in registration order.
func (h *Harness) Backends() []backend.Identity {
	ids := make([]backend.Identity, len(h.adapters))
	for i, a := range h.adapters {
		ids[i] = a.Identity()
	}
	return ids
}

// Run executes the full (scenario x backend) matrix and returns the
// populated aggregator. Backends run concurrently; scenarios run in order
// within a backend. A failing pair never stops the others.
//
// Cancelling ctx does not abort the run: pairs not yet finished are
// recorded as transient errors carrying the context's message.
func (h *Harness) Run(ctx context.Context, suite *Suite) (*Aggregator, error) {
	if suite == nil || len(suite.Scenarios) == 0 {
		return nil, ErrNoScenarios
	}

	agg := NewAggregator()
	var g errgroup.Group
	g.SetLimit(h.concurrency)

	h.logger.Info("run started",
		zap.Int("scenarios", len(suite.Scenarios)),
		zap.Int("backends", len(h.adapters)),
	)
	for _, a := range h.adapters {
		g.Go(func() error {
			h.runBackend(ctx, a, suite, agg)
			return nil
		})
	}
	_ = g.Wait()

	h.logger.Info("run finished", zap.Int("results", agg.Len()))
	return agg, nil
}

func (h *Harness) runBackend(ctx context.Context, a backend.Adapter, suite *Suite, agg *Aggregator) {
	configured := a.Configured()
	var skipReason string
	if !configured {
		skipReason = backend.NotConfigured(a).Error()
		h.logger.Info("backend not configured", zap.String("backend", string(a.Identity())), zap.String("reason", skipReason))
	}

	for i, sc := range suite.Scenarios {
		p := &pair{
			log: h.logger.With(
				zap.String("scenario", sc.Name),
				zap.Int("index", i),
				zap.String("backend", string(a.Identity())),
			),
			scenario: sc.Name,
			index:    i,
			backend:  a.Identity(),
		}

		var r ScenarioResult
		switch {
		case !sc.Targets(a.Identity()):
			r = p.skip(ReasonNotSelected)
		case !configured:
			r = p.skip(skipReason)
		default:
			r = h.dispatch(ctx, a, p, sc, suite.PromptFor(sc))
		}
		agg.Add(r)
	}
}

// dispatch drives a configured pair to a terminal state.
func (h *Harness) dispatch(ctx context.Context, a backend.Adapter, p *pair, sc Scenario, prompt string) ScenarioResult {
	p.to(StateConfigured)

	effective, err := sc.Effective()
	if err != nil {
		return p.fail(StatusFail, "", err.Error(), 0, 0)
	}
	want, err := sc.Expected()
	if err != nil {
		return p.fail(StatusFail, "", fmt.Sprintf("expect.labels: %v", err), 0, 0)
	}
	if want != nil && !want.Equal(effective) {
		return p.fail(StatusFail, "", fmt.Sprintf("effective labels %s, expected %s", effective, want), 0, 0)
	}
	if err := ctx.Err(); err != nil {
		return p.fail(StatusError, backend.KindTransient, err.Error(), 0, 0)
	}

	p.to(StateDispatched)
	start := h.now()
	resp, err := h.invoke(ctx, a, effective, prompt)
	latency := h.now().Sub(start)

	if err != nil {
		be := backend.Classify(err)
		return p.fail(StatusError, be.Kind, errorMessage(be), 0, latency)
	}
	if resp == nil || len(resp.Text) == 0 {
		return p.fail(StatusFail, "", "empty response", 0, latency)
	}
	if sc.Expect != nil && sc.Expect.Forwarded && (resp.Forwarded == nil || !effective.Equal(resp.Forwarded)) {
		msg := "adapter did not report forwarded labels"
		if resp.Forwarded != nil {
			msg = fmt.Sprintf("forwarded labels %s, expected %s", resp.Forwarded, effective)
		}
		return p.fail(StatusFail, "", msg, len(resp.Text), latency)
	}

	p.to(StateCompleted)
	r := NewScenarioResult(p.scenario, p.index, p.backend, StatusPass, "", "")
	r.ResponseLen = len(resp.Text)
	r.Latency = latency
	return r
}

// invoke runs one call under the harness deadline. It returns as soon as
// the deadline passes, even if the adapter ignores its context.
func (h *Harness) invoke(parent context.Context, a backend.Adapter, effective *labels.Set, prompt string) (*backend.Response, error) {
	ctx := parent
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, h.timeout)
		defer cancel()
	}

	type outcome struct {
		resp *backend.Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := a.Invoke(ctx, effective, prompt)
		done <- outcome{resp, err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		o.err = ctx.Err()
	}
	if o.err == nil {
		return o.resp, nil
	}

	if perr := parent.Err(); perr != nil {
		return nil, backend.TransientError(perr.Error(), nil)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, backend.ErrTimeout
	}
	return nil, o.err
}

func errorMessage(e *backend.Error) string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// pair tracks the lifecycle of one (scenario, backend) pair.
type pair struct {
	log      *zap.Logger
	state    State
	scenario string
	index    int
	backend  backend.Identity
}

func (p *pair) to(next State) {
	p.log.Debug("pair transition",
		zap.Stringer("from", p.state),
		zap.Stringer("to", next),
	)
	p.state = next
}

func (p *pair) skip(reason string) ScenarioResult {
	p.to(StateSkipped)
	return NewScenarioResult(p.scenario, p.index, p.backend, StatusSkipped, "", reason)
}

func (p *pair) fail(status Status, kind backend.Kind, msg string, responseLen int, latency time.Duration) ScenarioResult {
	p.to(StateFailed)
	p.log.Warn("pair failed",
		zap.String("status", string(status)),
		zap.String("kind", string(kind)),
		zap.String("message", msg),
	)
	r := NewScenarioResult(p.scenario, p.index, p.backend, status, kind, msg)
	r.ResponseLen = responseLen
	r.Latency = latency
	return r
}
