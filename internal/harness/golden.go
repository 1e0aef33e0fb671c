package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/labelcheck/internal/ir"
)

// AssertGolden compares the canonical snapshot of report against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, report Report) error {
	t.Helper()

	data, err := ir.MarshalCanonical(report.Snapshot())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// RunWithGolden runs suite on h and compares the resulting report against
// a golden file.
func RunWithGolden(t *testing.T, h *Harness, suite *Suite, name string) (Report, error) {
	t.Helper()

	agg, err := h.Run(t.Context(), suite)
	if err != nil {
		return Report{}, err
	}
	report := agg.Summarize()
	return report, AssertGolden(t, name, report)
}
