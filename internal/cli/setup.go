package cli

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/backend/echo"
	"github.com/roach88/labelcheck/internal/backend/genai"
	"github.com/roach88/labelcheck/internal/backend/retry"
	"github.com/roach88/labelcheck/internal/backend/vertex"
	"github.com/roach88/labelcheck/internal/config"
	"github.com/roach88/labelcheck/internal/harness"
	"github.com/roach88/labelcheck/internal/logging"
	"github.com/roach88/labelcheck/internal/store"
)

func (o *RootOptions) lookup() backend.LookupFunc {
	if o.Lookup != nil {
		return o.Lookup
	}
	return backend.EnvLookup
}

// loadConfig resolves the config file and environment.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath, o.lookup())
	if err != nil {
		return config.Config{}, commandError(ErrCodeConfig, "failed to load config", err)
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the command logger. Logs never go to stdout.
func (o *RootOptions) newLogger(cmd *cobra.Command, cfg config.Config) (*zap.Logger, error) {
	var w io.Writer = o.LogOutput
	if w == nil {
		w = cmd.ErrOrStderr()
	}
	log, err := logging.New(cfg.Log, w)
	if err != nil {
		return nil, commandError(ErrCodeConfig, "failed to build logger", err)
	}
	return log, nil
}

// adapters builds every available adapter in identity order.
func (o *RootOptions) adapters(cfg config.Config) []backend.Adapter {
	if o.NewAdapters != nil {
		return o.NewAdapters(cfg, o.lookup())
	}
	return DefaultAdapters(cfg, o.lookup())
}

// DefaultAdapters returns the built-in adapters configured from cfg.
func DefaultAdapters(cfg config.Config, lookup backend.LookupFunc) []backend.Adapter {
	return []backend.Adapter{
		echo.New(),
		genai.New(genai.Config{
			Model:   cfg.GenAI.Model,
			BaseURL: cfg.GenAI.BaseURL,
			Lookup:  lookup,
		}),
		vertex.New(vertex.Config{
			Project:  cfg.Vertex.Project,
			Location: cfg.Vertex.Location,
			Model:    cfg.Vertex.Model,
			Endpoint: cfg.Vertex.Endpoint,
			Lookup:   lookup,
		}),
	}
}

// selectAdapters keeps the adapters named in names, in the order given.
// An empty names list keeps all of them.
func selectAdapters(all []backend.Adapter, names []string) ([]backend.Adapter, error) {
	if len(names) == 0 {
		return all, nil
	}

	byID := make(map[backend.Identity]backend.Adapter, len(all))
	for _, a := range all {
		byID[a.Identity()] = a
	}

	var out []backend.Adapter
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			id, err := backend.ParseIdentity(strings.TrimSpace(name))
			if err != nil {
				return nil, commandError(ErrCodeBackend, "invalid --backend", err)
			}
			a, ok := byID[id]
			if !ok {
				return nil, commandError(ErrCodeBackend, "backend not available: "+string(id), nil)
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// withRetries wraps every adapter so transient failures are retried.
func withRetries(adapters []backend.Adapter, retries int, log *zap.Logger) []backend.Adapter {
	if retries <= 0 {
		return adapters
	}
	out := make([]backend.Adapter, len(adapters))
	for i, a := range adapters {
		w := retry.Wrap(a, retry.Exponential(uint64(retries)))
		id := a.Identity()
		w.OnRetry = func(err error, attempt int) {
			log.Info("retrying transient failure",
				zap.String("backend", string(id)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		out[i] = w
	}
	return out
}

// loadSuite loads the suites under paths, or the built-in suite when no
// path is given.
func loadSuite(paths []string) (*harness.Suite, error) {
	if len(paths) == 0 {
		return harness.DefaultSuite(), nil
	}
	suite, err := harness.LoadSuites(paths)
	if err != nil {
		return nil, commandError(ErrCodeSuite, "failed to load suite", err)
	}
	return suite, nil
}

// openStore opens the run history at path.
func openStore(ctx context.Context, path string) (*store.Store, error) {
	if path == "" {
		return nil, commandError(ErrCodeStore, "no store configured (use --store or LABELCHECK_STORE)", nil)
	}
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, commandError(ErrCodeStore, "failed to open store", err)
	}
	return st, nil
}
