package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/labelcheck/internal/store"
)

// HistoryOptions holds flags for the history and show commands.
type HistoryOptions struct {
	*RootOptions
	Store string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Long: `List runs recorded with run --store.

Examples:
  labelcheck history --store runs.db
  labelcheck history --store runs.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "SQLite run history path")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")

	return cmd
}

func (o *HistoryOptions) open(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("store") {
		cfg.Store = o.Store
	}
	return openStore(cmd.Context(), cfg.Store)
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	st, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return commandError(ErrCodeStore, "failed to list runs", err)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(w, CLIResponse{Status: "ok", Data: runs})
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %d passed, %d failed, %d skipped  %s\n",
			r.ID, r.StartedAt.Format(time.RFC3339),
			r.Counts.Passed, r.Counts.Failed, r.Counts.Skipped, shortDigest(r.Digest))
	}
	return nil
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a recorded run and verify its digest",
		Long: `Print the report of a recorded run. A unique ID prefix is accepted.

The report is rebuilt from the stored results and its digest compared with
the digest recorded at run time. A mismatch exits 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "", "SQLite run history path")

	return cmd
}

func runShow(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	st, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(cmd.Context(), id)
	switch {
	case errors.Is(err, store.ErrRunNotFound), errors.Is(err, store.ErrAmbiguousRunID):
		return commandError(ErrCodeStore, "cannot show run "+id, err)
	case err != nil:
		return commandError(ErrCodeStore, "failed to read run", err)
	}

	report := run.Report()
	digest, err := report.Digest()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to digest report", err)
	}
	mismatch := digest != run.Digest
	msg := fmt.Sprintf("digest mismatch: recorded %s, recomputed %s", run.Digest, digest)

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		out := ReportOutput{RunID: run.ID, Digest: digest, Report: report}
		if err := writeJSONResult(w, out, mismatch, ErrCodeDigest, msg); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Run: %s\nStarted: %s\nPrompt: %s\n\n",
			run.ID, run.StartedAt.Format(time.RFC3339), run.Prompt)
		writeReportText(w, report, nil)
		fmt.Fprintf(w, "Digest: %s\n", digest)
	}

	if mismatch {
		return reported(opts.Format, &codedError{code: ErrCodeDigest, err: NewExitError(ExitFailure, msg)})
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
