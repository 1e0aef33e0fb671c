package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/ir"
)

// Status is the terminal outcome of one (scenario, backend) pair.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// ParseStatus converts a stored status string back to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPass, StatusFail, StatusError, StatusSkipped:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// State is a step in a pair's lifecycle.
type State int

const (
	StatePending State = iota
	StateConfigured
	StateSkipped
	StateDispatched
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfigured:
		return "configured"
	case StateSkipped:
		return "skipped"
	case StateDispatched:
		return "dispatched"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateSkipped || s == StateCompleted || s == StateFailed
}

// ScenarioResult is the outcome of one (scenario, backend) pair.
// Results are values and are never modified once recorded.
type ScenarioResult struct {
	// ID is content-addressed from the pair and its outcome.
	ID string `json:"id"`

	Scenario string           `json:"scenario"`
	Index    int              `json:"index"`
	Backend  backend.Identity `json:"backend"`
	Status   Status           `json:"status"`

	// Kind is set for StatusError.
	Kind backend.Kind `json:"kind,omitempty"`

	// Message holds the error text, failure detail, or skip reason.
	Message string `json:"message,omitempty"`

	ResponseLen int `json:"response_len"`

	// Latency covers dispatch to terminal state. It is excluded from the
	// Report so identical runs summarize identically.
	Latency time.Duration `json:"-"`
}

// NewScenarioResult builds a result and computes its ID. Invalid UTF-8 in
// message, as remote error bodies may carry, is replaced with U+FFFD.
func NewScenarioResult(scenario string, index int, id backend.Identity, status Status, kind backend.Kind, message string) ScenarioResult {
	return ScenarioResult{
		ID:       ir.MustResultID(scenario, index, string(id), string(status), string(kind)),
		Scenario: scenario,
		Index:    index,
		Backend:  id,
		Status:   status,
		Kind:     kind,
		Message:  strings.ToValidUTF8(message, "\uFFFD"),
	}
}

// Counted reports whether r enters the success rate denominator.
func (r ScenarioResult) Counted() bool {
	return r.Status != StatusSkipped
}
