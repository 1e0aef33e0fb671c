package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/labelcheck/internal/harness"
	"github.com/roach88/labelcheck/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Backends    []string
	Prompt      string
	Timeout     time.Duration
	Concurrency int
	Retries     int
	Store       string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [suite-files-or-dirs...]",
		Short: "Run label propagation scenarios against backends",
		Long: `Run every scenario against every selected backend and print the report.

With no paths the built-in suite is used. Directories are searched for
.yaml, .yml and .cue suite files. Backends whose credentials are missing
are skipped, not failed.

Exit codes:
  0 - No pair failed
  1 - One or more pairs failed or errored
  2 - Fatal configuration error (bad suite, no backends, etc.)

Examples:
  labelcheck run
  labelcheck run ./suites --backend vertex --backend genai
  labelcheck run ./suites --retries 2 --store runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Backends, "backend", nil, "backend to run (repeatable; default all)")
	cmd.Flags().StringVar(&opts.Prompt, "prompt", "", "prompt sent for every scenario")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-invoke timeout (default from config, 30s)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "backends dispatched at once (default from config, 2)")
	cmd.Flags().IntVar(&opts.Retries, "retries", 0, "retries for transient failures")
	cmd.Flags().StringVar(&opts.Store, "store", "", "SQLite path to record the run")

	return cmd
}

func runSuite(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Timeout = opts.Timeout
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = opts.Concurrency
	}
	if flags.Changed("retries") {
		cfg.Retries = opts.Retries
	}
	if flags.Changed("store") {
		cfg.Store = opts.Store
	}
	if err := cfg.Validate(); err != nil {
		return commandError(ErrCodeConfig, "invalid flags", err)
	}

	log, err := opts.newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	suite, err := loadSuite(paths)
	if err != nil {
		return err
	}
	if opts.Prompt != "" {
		suite.Prompt = opts.Prompt
		for i := range suite.Scenarios {
			suite.Scenarios[i].Prompt = ""
		}
	}

	adapters, err := selectAdapters(opts.adapters(cfg), opts.Backends)
	if err != nil {
		return err
	}
	adapters = withRetries(adapters, cfg.Retries, log)

	h, err := harness.New(adapters,
		harness.WithLogger(log),
		harness.WithTimeout(cfg.Timeout),
		harness.WithConcurrency(cfg.Concurrency),
	)
	if err != nil {
		return commandError(ErrCodeBackend, "failed to create harness", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	agg, err := h.Run(ctx, suite)
	if err != nil {
		return commandError(ErrCodeSuite, "failed to run suite", err)
	}
	report := agg.Summarize()

	out := ReportOutput{Report: report}
	if out.Digest, err = report.Digest(); err != nil {
		return WrapExitError(ExitFailure, "failed to digest report", err)
	}
	if cfg.Store != "" {
		id, err := recordRun(ctx, cfg.Store, started, suite.PromptFor(harness.Scenario{}), agg)
		if err != nil {
			return err
		}
		out.RunID = id
		log.Info("run recorded", zap.String("run_id", id), zap.String("store", cfg.Store))
	}

	failedMsg := fmt.Sprintf("%d pair(s) failed", report.Failed)
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSONResult(w, out, report.Failed > 0, ErrCodeFailed, failedMsg); err != nil {
			return err
		}
	} else {
		var latency func(harness.BackendReport) string
		if opts.Verbose {
			latency = func(b harness.BackendReport) string {
				s := agg.Latency(b.Backend)
				if s.Count == 0 {
					return ""
				}
				return fmt.Sprintf("p50=%s p95=%s max=%s n=%d", s.P50, s.P95, s.Max, s.Count)
			}
		}
		writeReportText(w, report, latency)
		fmt.Fprintf(w, "Digest: %s\n", out.Digest)
		if out.RunID != "" {
			fmt.Fprintf(w, "Run: %s\n", out.RunID)
		}
	}

	if report.Failed > 0 {
		return reported(opts.Format, NewExitError(ExitFailure, failedMsg))
	}
	return nil
}

func recordRun(ctx context.Context, path string, started time.Time, prompt string, agg *harness.Aggregator) (string, error) {
	// A cancelled run is still recorded.
	ctx = context.WithoutCancel(ctx)
	st, err := openStore(ctx, path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	run, err := store.NewRun(started, prompt, agg)
	if err != nil {
		return "", commandError(ErrCodeStore, "failed to record run", err)
	}
	if err := st.WriteRun(ctx, run); err != nil {
		return "", commandError(ErrCodeStore, "failed to record run", err)
	}
	return run.ID, nil
}
