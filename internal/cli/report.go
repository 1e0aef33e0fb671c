package cli

import (
	"fmt"
	"io"

	"github.com/roach88/labelcheck/internal/harness"
)

// ReportOutput is the JSON payload for a run or a stored run.
type ReportOutput struct {
	RunID  string         `json:"run_id,omitempty"`
	Digest string         `json:"digest"`
	Report harness.Report `json:"report"`
}

// writeReportText prints a report grouped by backend.
func writeReportText(w io.Writer, report harness.Report, latency func(harness.BackendReport) string) {
	for _, b := range report.Backends {
		fmt.Fprintf(w, "%s: %d passed, %d failed, %d skipped (%s)\n",
			b.Backend, b.Passed, b.Failed, b.Skipped, rateText(b.SuccessRate, b.RateUndefined))
		for _, r := range b.Results {
			fmt.Fprintf(w, "  %s %s", statusMark(r.Status), r.Scenario)
			switch r.Status {
			case harness.StatusError:
				fmt.Fprintf(w, ": %s error: %s", r.Kind, r.Message)
			case harness.StatusFail, harness.StatusSkipped:
				fmt.Fprintf(w, ": %s", r.Message)
			}
			fmt.Fprintln(w)
		}
		if latency != nil {
			if line := latency(b); line != "" {
				fmt.Fprintf(w, "  latency %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d skipped, %d total\n",
		report.Passed, report.Failed, report.Skipped, report.Total)
	fmt.Fprintf(w, "Success rate: %s\n", rateText(report.SuccessRate, report.RateUndefined))
}

func rateText(rate float64, undefined bool) string {
	if undefined {
		return harness.FormatRate(0) + ", nothing dispatched"
	}
	return harness.FormatRate(rate)
}

func statusMark(s harness.Status) string {
	switch s {
	case harness.StatusPass:
		return "✓"
	case harness.StatusSkipped:
		return "-"
	case harness.StatusError:
		return "!"
	default:
		return "✗"
	}
}
