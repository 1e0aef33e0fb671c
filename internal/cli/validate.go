package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/labelcheck/internal/labels"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ScenarioCheck is the validate result for one scenario.
type ScenarioCheck struct {
	Name      string            `json:"name"`
	Effective map[string]string `json:"effective"`
	Expected  map[string]string `json:"expected,omitempty"`
	OK        bool              `json:"ok"`
}

// ValidateResult is the JSON payload of the validate command.
type ValidateResult struct {
	Scenarios  []ScenarioCheck `json:"scenarios"`
	Mismatched int             `json:"mismatched"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [suite-files-or-dirs...]",
		Short: "Check suites and print effective labels without dispatching",
		Long: `Load suites, merge every scenario's layers and print the effective labels.

Nothing is sent to any backend. A scenario whose expect.labels differs from
its effective labels is reported and the command exits 1.

Examples:
  labelcheck validate
  labelcheck validate ./suites --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	suite, err := loadSuite(paths)
	if err != nil {
		return err
	}

	result := ValidateResult{Scenarios: make([]ScenarioCheck, 0, len(suite.Scenarios))}
	for _, sc := range suite.Scenarios {
		eff, err := sc.Effective()
		if err != nil {
			return commandError(ErrCodeSuite, "invalid scenario "+sc.Name, err)
		}
		check := ScenarioCheck{Name: sc.Name, Effective: eff.Map(), OK: true}

		want, err := sc.Expected()
		if err != nil {
			return commandError(ErrCodeSuite, "invalid scenario "+sc.Name, err)
		}
		if want != nil {
			check.Expected = want.Map()
			check.OK = want.Equal(eff)
		}
		if !check.OK {
			result.Mismatched++
		}
		result.Scenarios = append(result.Scenarios, check)
	}

	msg := fmt.Sprintf("%d scenario(s) do not match expect.labels", result.Mismatched)
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSONResult(w, result, result.Mismatched > 0, ErrCodeExpectation, msg); err != nil {
			return err
		}
	} else {
		for _, check := range result.Scenarios {
			if check.OK {
				fmt.Fprintf(w, "✓ %s %s\n", check.Name, labels.MustNew(check.Effective))
				continue
			}
			fmt.Fprintf(w, "✗ %s %s\n", check.Name, labels.MustNew(check.Effective))
			fmt.Fprintf(w, "  expected %s\n", labels.MustNew(check.Expected))
		}
		fmt.Fprintf(w, "\n%d scenario(s), %d mismatched\n", len(result.Scenarios), result.Mismatched)
	}

	if result.Mismatched > 0 {
		return reported(opts.Format, NewExitError(ExitFailure, msg))
	}
	return nil
}
